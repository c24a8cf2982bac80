package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ChannelSessionCompleted = "interview:session_completed"
	ChannelResponseFinished = "interview:response_finished"
)

type SessionCompletedEvent struct {
	SessionID      string    `json:"sessionId"`
	InterviewID    string    `json:"interviewId"`
	CandidateID    string    `json:"candidateId,omitempty"`
	TotalScore     float64   `json:"totalScore"`
	Recommendation string    `json:"recommendation"`
	CompletedAt    time.Time `json:"completedAt"`
}

// ResponseFinishedEvent announces that an answer reached a terminal state.
type ResponseFinishedEvent struct {
	ResponseID string   `json:"responseId"`
	SessionID  string   `json:"sessionId"`
	QuestionID string   `json:"questionId"`
	Attempt    int      `json:"attempt"`
	Status     string   `json:"status"`
	Score      *float64 `json:"score,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type Publisher interface {
	SessionCompleted(ctx context.Context, event SessionCompletedEvent) error
	ResponseFinished(ctx context.Context, event ResponseFinishedEvent) error
}

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) SessionCompleted(ctx context.Context, event SessionCompletedEvent) error {
	return p.publish(ctx, ChannelSessionCompleted, event)
}

func (p *RedisPublisher) ResponseFinished(ctx context.Context, event ResponseFinishedEvent) error {
	return p.publish(ctx, ChannelResponseFinished, event)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", channel, err)
	}
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// Ping reports whether Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) SessionCompleted(context.Context, SessionCompletedEvent) error { return nil }
func (NopPublisher) ResponseFinished(context.Context, ResponseFinishedEvent) error { return nil }
