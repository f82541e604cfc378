package roomsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgogo/client/internal/models"
	"chatgogo/client/internal/roomsync"
)

func TestSession_OpenRoomHappyPath(t *testing.T) {
	backend := new(MockBackend)
	sub := &fakeSubscription{}
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(sub, nil)

	session := roomsync.NewSession(backend, 1)
	err := session.OpenRoom(context.Background(), int64(7))
	require.NoError(t, err)

	assert.Equal(t, roomsync.StateReady, session.State())
	assert.Equal(t, int64(7), session.RoomID())

	view := session.Snapshot()
	assert.Len(t, view.Participants, 2)
	assert.Equal(t, []int64{1}, messageIDs(view.Messages))
	assert.Nil(t, view.Err)
	assert.Equal(t, 0, sub.Cancelled())
}

func TestSession_OpenRoomPullFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(nil, errors.New("connection refused"))

	session := roomsync.NewSession(backend, 1)
	err := session.OpenRoom(context.Background(), int64(7))

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, roomsync.StateFailed, session.State())
	assert.ErrorIs(t, session.Snapshot().Err, err)
	backend.AssertNotCalled(t, "SubscribeNewMessage", int64(7))
}

func TestSession_OpenRoomSubscribeFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(nil, errors.New("ws dial failed"))

	session := roomsync.NewSession(backend, 1)
	err := session.OpenRoom(context.Background(), int64(7))

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, roomsync.StateFailed, session.State())
}

func TestSession_SwitchingRoomsCancelsPreviousSubscription(t *testing.T) {
	backend := new(MockBackend)
	subA := &fakeSubscription{}
	subB := &fakeSubscription{}
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "in A", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(subA, nil)
	backend.On("FetchRoom", int64(8)).Return(roomWith(8, msg(2, "in B", 2)), nil)
	backend.On("SubscribeNewMessage", int64(8)).Return(subB, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))
	require.NoError(t, session.OpenRoom(context.Background(), int64(8)))

	assert.Equal(t, 1, subA.Cancelled())
	assert.Equal(t, 0, subB.Cancelled())
	assert.Equal(t, int64(8), session.RoomID())

	view := session.Snapshot()
	assert.Equal(t, []int64{2}, messageIDs(view.Messages))
}

func TestSession_LatePullForSupersededRoomIsDiscarded(t *testing.T) {
	backend := new(MockBackend)
	subB := &fakeSubscription{}
	release := make(chan time.Time)
	backend.On("FetchRoom", int64(7)).WaitUntil(release).Return(roomWith(7, msg(1, "stale", 1)), nil)
	backend.On("FetchRoom", int64(8)).Return(roomWith(8, msg(2, "fresh", 2)), nil)
	backend.On("SubscribeNewMessage", int64(8)).Return(subB, nil)

	session := roomsync.NewSession(backend, 1)

	done := make(chan error, 1)
	go func() {
		done <- session.OpenRoom(context.Background(), int64(7))
	}()

	// Let the open for room 7 reach its pull before switching away.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, session.OpenRoom(context.Background(), int64(8)))

	close(release)
	assert.ErrorIs(t, <-done, roomsync.ErrSuperseded)

	// The stale pull must not have touched the store, and room 7 must never
	// have been subscribed.
	view := session.Snapshot()
	assert.Equal(t, []int64{2}, messageIDs(view.Messages))
	backend.AssertNotCalled(t, "SubscribeNewMessage", int64(7))
}

func TestSession_PushEventsMergeInOrder(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	backend.Push(msg(2, "yo", 2))
	backend.Push(msg(3, "sup", 1))
	backend.Push(msg(2, "yo", 2)) // redelivery, absorbed

	view := session.Snapshot()
	assert.Equal(t, []int64{1, 2, 3}, messageIDs(view.Messages))
}

func TestSession_CrossRoomPushEventIsDropped(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	tagged := msg(5, "wrong room", 2)
	tagged.RoomID = 9
	backend.Push(tagged)

	assert.Empty(t, session.Snapshot().Messages)

	// Events tagged with the open room, or not tagged at all, pass through.
	mine := msg(6, "right room", 2)
	mine.RoomID = 7
	backend.Push(mine)
	backend.Push(msg(7, "untagged", 2))

	assert.Equal(t, []int64{6, 7}, messageIDs(session.Snapshot().Messages))
}

func TestSession_PushAfterCloseIsDropped(t *testing.T) {
	backend := new(MockBackend)
	sub := &fakeSubscription{}
	backend.On("FetchRoom", int64(7)).Return(roomWith(7), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(sub, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	session.Close()
	assert.Equal(t, 1, sub.Cancelled())
	assert.Equal(t, roomsync.StateIdle, session.State())

	// The read pump may still be draining; its deliveries go nowhere.
	backend.Push(msg(2, "late", 2))
	assert.Empty(t, session.Snapshot().Messages)
}

func TestSession_CloseThenReopen(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))
	session.Close()

	// The handle stays usable after Close.
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))
	assert.Equal(t, roomsync.StateReady, session.State())
	assert.Equal(t, []int64{1}, messageIDs(session.Snapshot().Messages))
}

func TestSession_RefreshKeepsPushedMessages(t *testing.T) {
	backend := new(MockBackend)
	sub := &fakeSubscription{}
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil).Once()
	backend.On("SubscribeNewMessage", int64(7)).Return(sub, nil)

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	backend.Push(msg(5, "pushed after pull", 2))

	// The refresh pull still lags behind the push feed.
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1), msg(2, "hello", 2)), nil)
	require.NoError(t, session.Refresh(context.Background()))

	view := session.Snapshot()
	assert.Equal(t, []int64{1, 2, 5}, messageIDs(view.Messages))

	// Refresh reuses the live feed, it does not resubscribe.
	backend.AssertNumberOfCalls(t, "SubscribeNewMessage", 1)
	assert.Equal(t, 0, sub.Cancelled())
}

func TestSession_RefreshFailureKeepsLastKnownGood(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil).Once()
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)
	backend.On("FetchRoom", int64(7)).Return(nil, errors.New("gateway timeout"))

	session := roomsync.NewSession(backend, 1)
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	err := session.Refresh(context.Background())
	var te *models.TransportError
	require.ErrorAs(t, err, &te)

	assert.Equal(t, roomsync.StateReady, session.State())
	assert.Equal(t, []int64{1}, messageIDs(session.Snapshot().Messages))
}

func TestSession_RefreshFromFailedRetriesOpen(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(nil, errors.New("down")).Once()
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	session := roomsync.NewSession(backend, 1)
	require.Error(t, session.OpenRoom(context.Background(), int64(7)))
	require.Equal(t, roomsync.StateFailed, session.State())

	require.NoError(t, session.Refresh(context.Background()))
	assert.Equal(t, roomsync.StateReady, session.State())
	assert.Equal(t, []int64{1}, messageIDs(session.Snapshot().Messages))
}

func TestSession_RefreshWithoutRoom(t *testing.T) {
	session := roomsync.NewSession(new(MockBackend), 1)
	assert.ErrorIs(t, session.Refresh(context.Background()), roomsync.ErrNoRoom)
}

func TestSession_ObserverSeesLifecycle(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	session := roomsync.NewSession(backend, 1)
	updates := session.Subscribe()
	defer session.Unsubscribe(updates)

	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	first := <-updates
	assert.Equal(t, roomsync.StateLoading, first.State)
	assert.Equal(t, int64(7), first.RoomID)

	second := <-updates
	assert.Equal(t, roomsync.StateReady, second.State)
	assert.Equal(t, []int64{1}, messageIDs(second.Messages))

	backend.Push(msg(2, "yo", 2))
	third := <-updates
	assert.Equal(t, []int64{1, 2}, messageIDs(third.Messages))
}

func TestSession_RecorderSeesEveryAcceptedMessage(t *testing.T) {
	backend := new(MockBackend)
	backend.On("FetchRoom", int64(7)).Return(roomWith(7, msg(1, "hi", 1)), nil)
	backend.On("SubscribeNewMessage", int64(7)).Return(&fakeSubscription{}, nil)

	recorder := new(MockRecorder)
	session := roomsync.NewSession(backend, 1, roomsync.WithRecorder(recorder))
	require.NoError(t, session.OpenRoom(context.Background(), int64(7)))

	backend.Push(msg(2, "yo", 2))
	backend.Push(msg(2, "yo", 2)) // duplicate, not recorded twice

	recorded := recorder.Recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, int64(7), recorded[0].roomID)
	assert.Equal(t, int64(1), recorded[0].msg.ID)
	assert.Equal(t, int64(2), recorded[1].msg.ID)
}
