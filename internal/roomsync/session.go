package roomsync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"chatgogo/client/internal/logging"
	"chatgogo/client/internal/models"
)

// State is the room-open lifecycle state exposed to the presentation layer.
type State int

const (
	// StateIdle: no room selected.
	StateIdle State = iota
	// StateLoading: the pull is in flight; the push feed is not attached yet.
	StateLoading
	// StateReady: pull succeeded, push feed attached, mutations enabled.
	StateReady
	// StateFailed: pull failed; the error is exposed and the caller may retry.
	StateFailed
	// StateClosed: the room instance is torn down; mutations are rejected.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Update is the read-only derived view handed to observers after every
// change: lifecycle state, participants, the canonical message list and the
// last error, if any.
type Update struct {
	State        State
	RoomID       int64
	Participants []models.User
	Messages     []models.Message
	Err          error
}

// Observer receives Updates. Buffered; a slow observer loses intermediate
// updates rather than blocking the engine.
type Observer chan Update

// Recorder is an optional sink for every message the engine accepts. The
// sqlite transcript cache implements it.
type Recorder interface {
	RecordMessage(roomID int64, m models.Message)
}

// Session owns exactly one "current room" at a time: it runs the pull, holds
// the push subscription, routes mutations, and guards the store against
// results that arrive after the room they belong to was left. Opening a new
// room tears the previous one down first; there is never a window with two
// live subscriptions.
type Session struct {
	backend  Backend
	selfID   int64
	recorder Recorder
	log      zerolog.Logger

	store *Store

	mu      sync.Mutex
	state   State
	roomID  int64
	gen     uint64 // bumped on every open/close; stale results check against it
	sub     Subscription
	lastErr error

	obsMu     sync.RWMutex
	observers map[Observer]bool
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder attaches a message sink (local history cache).
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLogger overrides the session's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession creates an idle session for the given user.
func NewSession(backend Backend, selfID int64, opts ...Option) *Session {
	s := &Session{
		backend:   backend,
		selfID:    selfID,
		log:       logging.WithComponent("roomsync"),
		store:     NewStore(),
		state:     StateIdle,
		observers: make(map[Observer]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer channel for view updates.
func (s *Session) Subscribe() Observer {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	o := make(Observer, 16)
	s.observers[o] = true
	return o
}

// Unsubscribe removes an observer and closes its channel.
func (s *Session) Unsubscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.observers[o] {
		delete(s.observers, o)
		close(o)
	}
}

func (s *Session) broadcast(u Update) {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for o := range s.observers {
		select {
		case o <- u:
		default:
			// Observer buffer full; it will catch up on the next update.
		}
	}
}

// updateLocked builds the current view. Caller holds s.mu.
func (s *Session) updateLocked() Update {
	participants, messages := s.store.Snapshot()
	return Update{
		State:        s.state,
		RoomID:       s.roomID,
		Participants: participants,
		Messages:     messages,
		Err:          s.lastErr,
	}
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the currently open room id, 0 when idle.
func (s *Session) RoomID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// teardownLocked cancels the push subscription and empties the store.
// Caller holds s.mu.
func (s *Session) teardownLocked() {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.store.SetInsertHook(nil)
	s.store.Clear()
}

// OpenRoom switches the session to the given room: previous room torn down,
// one pull, then the push feed. Any result belonging to a superseded open
// cycle is discarded with ErrSuperseded.
func (s *Session) OpenRoom(ctx context.Context, roomID int64) error {
	s.mu.Lock()
	s.teardownLocked()
	s.gen++
	g := s.gen
	s.roomID = roomID
	s.state = StateLoading
	s.lastErr = nil
	if s.recorder != nil {
		rec := s.recorder
		s.store.SetInsertHook(func(m models.Message) {
			rec.RecordMessage(roomID, m)
		})
	}
	u := s.updateLocked()
	s.mu.Unlock()
	s.broadcast(u)

	room, err := s.backend.FetchRoom(ctx, roomID)

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		s.log.Debug().Int64("room_id", roomID).Msg("discarding pull for superseded room")
		return ErrSuperseded
	}
	if err != nil {
		ferr := normalizeRemote("fetch room", err)
		s.state = StateFailed
		s.lastErr = ferr
		u := s.updateLocked()
		s.mu.Unlock()
		s.broadcast(u)
		return ferr
	}
	s.store.ReplaceAll(room.Users, room.Messages)
	s.mu.Unlock()

	// Subscribe outside the lock: a transport is allowed to deliver the first
	// events synchronously, and deliveries take s.mu.
	sub, serr := s.backend.SubscribeNewMessage(ctx, roomID, func(m models.Message) {
		s.deliver(g, m)
	})

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		if serr == nil && sub != nil {
			sub.Cancel()
		}
		return ErrSuperseded
	}
	if serr != nil {
		ferr := normalizeRemote("subscribe", serr)
		s.state = StateFailed
		s.lastErr = ferr
		u := s.updateLocked()
		s.mu.Unlock()
		s.broadcast(u)
		return ferr
	}
	s.sub = sub
	s.state = StateReady
	s.lastErr = nil
	u = s.updateLocked()
	s.mu.Unlock()
	s.broadcast(u)

	s.log.Info().Int64("room_id", roomID).Msg("room open")
	return nil
}

// deliver applies one push event. Events from a superseded open cycle and
// events tagged for another room are dropped; duplicates are absorbed by the
// store's id dedup.
func (s *Session) deliver(g uint64, m models.Message) {
	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return
	}
	if m.RoomID != 0 && m.RoomID != s.roomID {
		roomID := s.roomID
		s.mu.Unlock()
		s.log.Debug().
			Int64("room_id", roomID).
			Int64("event_room_id", m.RoomID).
			Msg("dropping event for another room")
		return
	}
	changed := s.store.MergeIncoming(m)
	var u Update
	if changed {
		u = s.updateLocked()
	}
	s.mu.Unlock()
	if changed {
		s.broadcast(u)
	}
}

// Refresh re-pulls the open room. Push events received since the feed
// attached survive the refresh (the store re-applies them on top of the pull
// result). From StateFailed this retries the whole open cycle. A refresh
// failure keeps the last known good state visible.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateFailed:
		roomID := s.roomID
		s.mu.Unlock()
		return s.OpenRoom(ctx, roomID)
	case StateReady:
	default:
		s.mu.Unlock()
		return ErrNoRoom
	}
	g := s.gen
	roomID := s.roomID
	s.mu.Unlock()

	room, err := s.backend.FetchRoom(ctx, roomID)

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		ferr := normalizeRemote("refresh room", err)
		s.lastErr = ferr
		u := s.updateLocked()
		s.mu.Unlock()
		s.broadcast(u)
		return ferr
	}
	s.store.ReplaceAll(room.Users, room.Messages)
	s.lastErr = nil
	u := s.updateLocked()
	s.mu.Unlock()
	s.broadcast(u)
	return nil
}

// Close tears the current room down and returns the session to Idle. The
// room instance itself is finished: its subscription is cancelled and its
// store cleared. The session handle stays reusable for the next OpenRoom.
func (s *Session) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.gen++
	s.state = StateIdle
	s.roomID = 0
	s.lastErr = nil
	u := s.updateLocked()
	s.mu.Unlock()
	s.broadcast(u)
}
