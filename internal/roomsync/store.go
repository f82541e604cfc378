package roomsync

import (
	"sync"

	"chatgogo/client/internal/models"
)

// Store holds the canonical ordered, deduplicated message list and the
// participant pair for one open room. It is the single shared mutable
// resource of the engine; the Session is its only writer.
//
// Order is append-order as observed by the client: pull results first, then
// push events in receipt order. Message ids are unique within the list.
type Store struct {
	mu           sync.RWMutex
	participants []models.User
	messages     []models.Message
	index        map[int64]int // message id -> position in messages

	onInsert func(models.Message)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[int64]int)}
}

// SetInsertHook registers a hook invoked synchronously for every message the
// store accepts, after the store's own lock is released. Used for the local
// transcript cache. A nil hook disables it.
func (s *Store) SetInsertHook(fn func(models.Message)) {
	s.mu.Lock()
	s.onInsert = fn
	s.mu.Unlock()
}

// ReplaceAll installs a pull result. Semantics are set-union, not overwrite:
// pulled messages keep pull order, and any message already present that the
// pull does not contain (a push event newer than the pull's snapshot) is
// re-appended in its existing relative order. On the first pull the store is
// empty and this degrades to a plain install.
func (s *Store) ReplaceAll(participants []models.User, messages []models.Message) {
	s.mu.Lock()

	merged := make([]models.Message, 0, len(messages)+len(s.messages))
	index := make(map[int64]int, len(messages)+len(s.messages))
	var inserted []models.Message

	for _, m := range messages {
		if _, dup := index[m.ID]; dup {
			continue
		}
		if _, had := s.index[m.ID]; !had {
			inserted = append(inserted, m)
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	for _, m := range s.messages {
		if _, ok := index[m.ID]; ok {
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}

	s.participants = append([]models.User(nil), participants...)
	s.messages = merged
	s.index = index
	hook := s.onInsert
	s.mu.Unlock()

	if hook != nil {
		for _, m := range inserted {
			hook(m)
		}
	}
}

// MergeIncoming appends a single message unless its id is already present.
// Idempotent; reports whether the store changed.
func (s *Store) MergeIncoming(m models.Message) bool {
	s.mu.Lock()
	if _, ok := s.index[m.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.index[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
	hook := s.onInsert
	s.mu.Unlock()

	if hook != nil {
		hook(m)
	}
	return true
}

// PatchEdited replaces the text of the message with the given id. Editing an
// id that is not present (already deleted, or never loaded) is a no-op.
func (s *Store) PatchEdited(id int64, newText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}
	if s.messages[pos].Text == newText {
		return false
	}
	s.messages[pos].Text = newText
	return true
}

// Remove deletes the message with the given id. No-op when absent.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
	return true
}

// Clear drops all state. Part of room teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	s.participants = nil
	s.messages = nil
	s.index = make(map[int64]int)
	s.mu.Unlock()
}

// Contains reports whether a message id is present.
func (s *Store) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns copies of the participant list and message list.
func (s *Store) Snapshot() ([]models.User, []models.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := append([]models.User(nil), s.participants...)
	messages := append([]models.Message(nil), s.messages...)
	return participants, messages
}
