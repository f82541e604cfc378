package roomsync

import (
	"context"
	"errors"

	"chatgogo/client/internal/models"
)

// Mutations run against the open room. Each call normalizes remote failures
// into the client taxonomy before returning: *models.ValidationError for
// field-scoped rejections, *models.TransportError for network or server
// failures. Operating on an id the server no longer knows is a no-op, not an
// error. None of the mutations retries on its own.

// mutableRoom snapshots the open room, rejecting the call when no room is
// ready for mutations.
func (s *Session) mutableRoom() (gen uint64, roomID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return 0, 0, ErrNoRoom
	}
	return s.gen, s.roomID, nil
}

// Send creates a message in the open room. The confirmed message is merged
// into the store directly; the push echo of the same message deduplicates
// against it by id, so both paths converge to one entry.
func (s *Session) Send(ctx context.Context, text string) (*models.Message, error) {
	g, roomID, err := s.mutableRoom()
	if err != nil {
		return nil, err
	}

	msg, err := s.backend.CreateMessage(ctx, text, s.selfID, roomID)
	if err != nil {
		return nil, normalizeRemote("send message", err)
	}

	s.mu.Lock()
	if s.gen != g {
		// Room switched while the request was in flight; the message belongs
		// to the old room and must not land in the new store.
		s.mu.Unlock()
		return msg, nil
	}
	changed := s.store.MergeIncoming(*msg)
	var u Update
	if changed {
		u = s.updateLocked()
	}
	s.mu.Unlock()
	if changed {
		s.broadcast(u)
	}
	return msg, nil
}

// Edit updates a message's text. On success the store entry is patched in
// place. Editing a message that no longer exists is silently ignored.
func (s *Session) Edit(ctx context.Context, id int64, text string) error {
	g, roomID, err := s.mutableRoom()
	if err != nil {
		return err
	}

	msg, err := s.backend.UpdateMessage(ctx, id, text, s.selfID, roomID)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Debug().Int64("message_id", id).Msg("edit target gone, ignoring")
		return nil
	}
	if err != nil {
		return normalizeRemote("edit message", err)
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return nil
	}
	changed := s.store.PatchEdited(id, msg.Text)
	var u Update
	if changed {
		u = s.updateLocked()
	}
	s.mu.Unlock()
	if changed {
		s.broadcast(u)
	}
	return nil
}

// Delete removes a message. There is no pushed delete event in this system,
// so the store entry is removed directly once the server confirms; a target
// the server no longer knows is removed locally all the same.
func (s *Session) Delete(ctx context.Context, id int64) error {
	g, _, err := s.mutableRoom()
	if err != nil {
		return err
	}

	err = s.backend.DeleteMessage(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return normalizeRemote("delete message", err)
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return nil
	}
	changed := s.store.Remove(id)
	var u Update
	if changed {
		u = s.updateLocked()
	}
	s.mu.Unlock()
	if changed {
		s.broadcast(u)
	}
	return nil
}

// normalizeRemote maps an arbitrary remote failure onto the client error
// taxonomy. Already-typed errors pass through untouched.
func normalizeRemote(op string, err error) error {
	var ve *models.ValidationError
	var te *models.TransportError
	switch {
	case errors.As(err, &ve):
		return ve
	case errors.As(err, &te):
		return te
	case errors.Is(err, models.ErrNotFound):
		return models.ErrNotFound
	default:
		return &models.TransportError{Op: op, Err: err}
	}
}
