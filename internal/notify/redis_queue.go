package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Pusher is the subset of *redis.Client used by the queue sink.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// QueueJob is the envelope consumed by the mail worker.
type QueueJob struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EmailJob is the payload of a send_email job.
type EmailJob struct {
	To       string  `json:"to"`
	Subject  string  `json:"subject"`
	HTML     string  `json:"html"`
	TicketID *string `json:"ticket_id,omitempty"`
	Retries  int     `json:"retries,omitempty"`
}

// RedisQueueSink enqueues one send_email job per recipient onto a Redis list.
type RedisQueueSink struct {
	client Pusher
	key    string
}

func NewRedisQueueSink(client Pusher, key string) *RedisQueueSink {
	return &RedisQueueSink{client: client, key: key}
}

func (q *RedisQueueSink) Deliver(ctx context.Context, msg Message) error {
	recipients := Dedupe(msg.Recipients)
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	var ticketID *string
	if msg.TicketID != "" {
		id := msg.TicketID
		ticketID = &id
	}
	body := SanitizeHTML(msg.Body)
	subject := sanitizeHeader(msg.Subject)

	var errs []error
	for _, to := range recipients {
		data, err := json.Marshal(EmailJob{To: to, Subject: subject, HTML: body, TicketID: ticketID})
		if err != nil {
			return fmt.Errorf("encode email job: %w", err)
		}
		job, err := json.Marshal(QueueJob{ID: uuid.NewString(), Type: "send_email", Data: data})
		if err != nil {
			return fmt.Errorf("encode queue job: %w", err)
		}
		if err := q.client.RPush(ctx, q.key, job).Err(); err != nil {
			errs = append(errs, fmt.Errorf("enqueue for %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}
