package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"sickleave_notifier/internal/domain/legacy"
)

var ErrNotConfirmed = errors.New("broker did not confirm publish")

// confirmBuffer holds late confirms until the next Send drains them; a full buffer
// would stall the connection's reader.
const confirmBuffer = 64

var _ legacy.Sender = (*Sender)(nil)

// Sender publishes encoded records to the legacy inbound queue. Every publish gets a
// fresh correlation id, and receipts are requested on the receipt queue.
type Sender struct {
	mu       sync.Mutex
	ch       Channel
	confirms <-chan amqp.Confirmation
	queue    string
	replyTo  string
	timeout  time.Duration
	now      func() time.Time
}

// NewSender wraps ch. When confirms is non-nil, Send waits for the broker ack.
func NewSender(ch Channel, confirms <-chan amqp.Confirmation, queue, replyTo string, timeout time.Duration) *Sender {
	return &Sender{
		ch:       ch,
		confirms: confirms,
		queue:    queue,
		replyTo:  replyTo,
		timeout:  timeout,
		now:      time.Now,
	}
}

// OpenSender opens a dedicated confirm-mode channel on conn.
func OpenSender(conn *amqp.Connection, queue, replyTo string, timeout time.Duration) (*Sender, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open sender channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	return NewSender(ch, confirms, queue, replyTo, timeout), nil
}

func (s *Sender) Send(ctx context.Context, record string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	correlationID := uuid.NewString()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// In confirm mode the broker acks with the channel's publish sequence number.
	tag := s.ch.GetNextPublishSeqNo()
	err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:   "text/plain",
		DeliveryMode:  amqp.Persistent,
		MessageId:     correlationID,
		CorrelationId: correlationID,
		ReplyTo:       s.replyTo,
		Timestamp:     s.now().UTC(),
		Body:          []byte(record),
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", s.queue, err)
	}

	if s.confirms == nil {
		return correlationID, nil
	}
	for {
		select {
		case c, ok := <-s.confirms:
			if !ok {
				return "", fmt.Errorf("publish to %s: confirms closed: %w", s.queue, ErrNotConfirmed)
			}
			if c.DeliveryTag < tag {
				// late confirm of an earlier publish that already timed out
				continue
			}
			if c.DeliveryTag > tag || !c.Ack {
				return "", fmt.Errorf("publish to %s (tag %d): %w", s.queue, tag, ErrNotConfirmed)
			}
			return correlationID, nil
		case <-ctx.Done():
			return "", fmt.Errorf("publish to %s: waiting for confirm: %w", s.queue, ctx.Err())
		}
	}
}
