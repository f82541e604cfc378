package roomsync

import (
	"context"
	"errors"

	"chatgogo/client/internal/models"
)

// Backend is the remote API surface the engine needs. internal/api implements
// it over GraphQL; tests substitute mocks.
type Backend interface {
	// FetchRoom loads a room's participants and full message history.
	FetchRoom(ctx context.Context, roomID int64) (*models.Room, error)

	// SubscribeNewMessage opens the push feed for a room. Events are handed to
	// onMessage one at a time, in receipt order, from a single goroutine.
	// Implementations may invoke onMessage before SubscribeNewMessage returns.
	SubscribeNewMessage(ctx context.Context, roomID int64, onMessage func(models.Message)) (Subscription, error)

	CreateMessage(ctx context.Context, text string, senderID, roomID int64) (*models.Message, error)
	UpdateMessage(ctx context.Context, id int64, text string, senderID, roomID int64) (*models.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// Subscription is a live push feed. Cancel must be safe to call more than
// once and must not block waiting for in-flight deliveries.
type Subscription interface {
	Cancel()
}

var (
	// ErrSuperseded reports that a result arrived after the session moved on
	// to another room (or closed) and was discarded.
	ErrSuperseded = errors.New("room superseded")

	// ErrNoRoom reports a mutation attempted while no room is open and ready.
	ErrNoRoom = errors.New("no open room")
)
