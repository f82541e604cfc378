package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgogo/client/internal/history"
	"chatgogo/client/internal/models"
)

func openTestCache(t *testing.T) *history.Service {
	t.Helper()
	svc, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func message(id int64, text string) models.Message {
	return models.Message{
		ID:     id,
		Text:   text,
		Sender: models.User{ID: 1, FullName: "Alice Martin"},
		Time:   "2024-05-01T10:00:00Z",
	}
}

func TestRecordMessageIsIdempotent(t *testing.T) {
	cache := openTestCache(t)

	cache.RecordMessage(7, message(1, "hi"))
	cache.RecordMessage(7, message(1, "hi"))
	cache.RecordMessage(7, message(1, "different text, same id"))

	transcript, err := cache.RoomTranscript(7)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, "hi", transcript[0].Text)
}

func TestRoomTranscriptOrderAndIsolation(t *testing.T) {
	cache := openTestCache(t)

	cache.RecordMessage(7, message(3, "third"))
	cache.RecordMessage(7, message(1, "first"))
	cache.RecordMessage(7, message(2, "second"))
	cache.RecordMessage(8, message(1, "other room"))

	transcript, err := cache.RoomTranscript(7)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, int64(1), transcript[0].ID)
	assert.Equal(t, int64(2), transcript[1].ID)
	assert.Equal(t, int64(3), transcript[2].ID)
	assert.Equal(t, int64(7), transcript[0].RoomID)
	assert.Equal(t, "Alice Martin", transcript[0].Sender.FullName)
}

func TestForgetDropsOnlyThatRoom(t *testing.T) {
	cache := openTestCache(t)

	cache.RecordMessage(7, message(1, "a"))
	cache.RecordMessage(8, message(1, "b"))

	require.NoError(t, cache.Forget(7))

	gone, err := cache.RoomTranscript(7)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := cache.RoomTranscript(8)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestTranscriptOfUnknownRoomIsEmpty(t *testing.T) {
	cache := openTestCache(t)

	transcript, err := cache.RoomTranscript(99)
	require.NoError(t, err)
	assert.Empty(t, transcript)
}
