package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisPublisherSessionCompleted(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, ChannelSessionCompleted)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewRedisPublisher(rdb)
	require.NoError(t, publisher.Ping(ctx))

	event := SessionCompletedEvent{
		SessionID:      "s1",
		InterviewID:    "i1",
		TotalScore:     90,
		Recommendation: "shortlist",
		CompletedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, publisher.SessionCompleted(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got SessionCompletedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisPublisherResponseFinished(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, ChannelResponseFinished)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisPublisher(rdb).ResponseFinished(ctx, ResponseFinishedEvent{
		ResponseID: "r1",
		SessionID:  "s1",
		Status:     "failed",
		Error:      "stt down",
	}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"status":"failed"`)
		assert.Contains(t, msg.Payload, `"error":"stt down"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.SessionCompleted(context.Background(), SessionCompletedEvent{}))
	assert.NoError(t, p.ResponseFinished(context.Background(), ResponseFinishedEvent{}))
}
