package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	q := NewQueue(rdb, "uno_actions_test_"+uuid.NewString())
	defer rdb.Del(ctx, q.Name())

	rec := ActionRecord{
		SessionID:     uuid.New(),
		ActionIndex:   3,
		ActorID:       "alice",
		ActionType:    "play",
		ActionPayload: map[string]interface{}{"card": "red:5"},
		Timestamp:     time.Now().UnixMilli(),
	}
	require.NoError(t, q.Publish(ctx, rec))

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, "play", got.ActionType)
	assert.Equal(t, "red:5", got.ActionPayload["card"])

	empty, err := q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestNewQueueDefaultsName(t *testing.T) {
	assert.Equal(t, DefaultQueueName, NewQueue(nil, "").Name())
}
