// Package events publishes change notifications over redis pub/sub. The API
// fans them out to websocket clients; the worker publishes review results.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel every event goes to.
const Channel = "talentflow:events"

type Type string

const (
	JobCreated            Type = "job.created"
	JobUpdated            Type = "job.updated"
	JobReordered          Type = "job.reordered"
	CandidateCreated      Type = "candidate.created"
	CandidateStageChanged Type = "candidate.stage_changed"
	CandidateNoteAdded    Type = "candidate.note_added"
	AssessmentUpdated     Type = "assessment.updated"
	SubmissionReceived    Type = "submission.received"
	SubmissionReviewed    Type = "submission.reviewed"
)

// Event is the JSON message clients receive.
type Event struct {
	Type          Type      `json:"type"`
	JobID         uint      `json:"jobId,omitempty"`
	CandidateID   uint      `json:"candidateId,omitempty"`
	SubmissionID  uint      `json:"submissionId,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Code          int       `json:"code"`
	Data          any       `json:"data,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher delivers events. Failures are reported but never roll back the
// change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes JSON-encoded events on Channel.
type RedisPublisher struct {
	client redisPublishClient
	now    func() time.Time
}

func NewRedisPublisher(client redisPublishClient) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = p.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
