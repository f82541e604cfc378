package roomsync_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"chatgogo/client/internal/models"
	"chatgogo/client/internal/roomsync"
)

// MockBackend is a testify mock for the roomsync.Backend interface. The push
// callback handed to SubscribeNewMessage is captured so tests can inject
// events as if the server delivered them.
type MockBackend struct {
	mock.Mock

	mu      sync.Mutex
	deliver func(models.Message)
}

func (m *MockBackend) FetchRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockBackend) SubscribeNewMessage(ctx context.Context, roomID int64, onMessage func(models.Message)) (roomsync.Subscription, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	m.mu.Lock()
	m.deliver = onMessage
	m.mu.Unlock()
	return args.Get(0).(roomsync.Subscription), args.Error(1)
}

// Push injects a message through the most recently captured subscription
// callback, simulating a server push.
func (m *MockBackend) Push(msg models.Message) {
	m.mu.Lock()
	fn := m.deliver
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (m *MockBackend) CreateMessage(ctx context.Context, text string, senderID, roomID int64) (*models.Message, error) {
	args := m.Called(text, senderID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockBackend) UpdateMessage(ctx context.Context, id int64, text string, senderID, roomID int64) (*models.Message, error) {
	args := m.Called(id, text, senderID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockBackend) DeleteMessage(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

// fakeSubscription counts Cancel calls so tests can assert teardown happened
// exactly once per open cycle.
type fakeSubscription struct {
	mu        sync.Mutex
	cancelled int
}

func (f *fakeSubscription) Cancel() {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
}

func (f *fakeSubscription) Cancelled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// MockRecorder captures messages handed to the transcript sink.
type MockRecorder struct {
	mu       sync.Mutex
	recorded []recordedMessage
}

type recordedMessage struct {
	roomID int64
	msg    models.Message
}

func (r *MockRecorder) RecordMessage(roomID int64, m models.Message) {
	r.mu.Lock()
	r.recorded = append(r.recorded, recordedMessage{roomID: roomID, msg: m})
	r.mu.Unlock()
}

func (r *MockRecorder) Recorded() []recordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedMessage(nil), r.recorded...)
}

func someUsers() []models.User {
	return []models.User{
		{ID: 1, FullName: "Alice Martin"},
		{ID: 2, FullName: "Bob Koval"},
	}
}

func msg(id int64, text string, senderID int64) models.Message {
	return models.Message{
		ID:     id,
		Text:   text,
		Sender: models.User{ID: senderID},
		Time:   "2024-05-01T10:00:00Z",
	}
}

func roomWith(id int64, messages ...models.Message) *models.Room {
	return &models.Room{
		ID:       id,
		Users:    someUsers(),
		Messages: messages,
	}
}

func messageIDs(msgs []models.Message) []int64 {
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}
