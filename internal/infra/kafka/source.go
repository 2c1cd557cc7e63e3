// Package kafka adapts segmentio/kafka-go readers to consumer sources.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"sickleave_notifier/internal/infra/consumer"
)

const defaultPollTimeout = 500 * time.Millisecond

// MessageReader is the part of *kafka.Reader a source needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source reads one topic. Offsets are committed only after the handler succeeded; a
// rejected record is held back and returned by the next Fetch.
type Source struct {
	reader      MessageReader
	pollTimeout time.Duration
	held        *kafka.Message
}

func NewSource(reader MessageReader) *Source {
	return &Source{reader: reader, pollTimeout: defaultPollTimeout}
}

// NewReader builds a consumer group reader for topic.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
		StartOffset:    kafka.FirstOffset,
	})
}

func (s *Source) Fetch(ctx context.Context) (*consumer.Message, error) {
	if s.held != nil {
		return toMessage(*s.held), nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()
	m, err := s.reader.FetchMessage(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch kafka message: %w", err)
	}
	return toMessage(m), nil
}

func (s *Source) Commit(ctx context.Context, msg *consumer.Message) error {
	m, ok := msg.Token.(kafka.Message)
	if !ok {
		return fmt.Errorf("message from %s is not a kafka record", msg.Source)
	}
	if err := s.reader.CommitMessages(ctx, m); err != nil {
		// Keep the record so it is handled again rather than skipped.
		s.held = &m
		return fmt.Errorf("failed to commit offset %d on %s: %w", m.Offset, m.Topic, err)
	}
	s.held = nil
	return nil
}

func (s *Source) Reject(_ context.Context, msg *consumer.Message) error {
	m, ok := msg.Token.(kafka.Message)
	if !ok {
		return fmt.Errorf("message from %s is not a kafka record", msg.Source)
	}
	s.held = &m
	return nil
}

func (s *Source) Close() error {
	return s.reader.Close()
}

func toMessage(m kafka.Message) *consumer.Message {
	return &consumer.Message{
		Source:   m.Topic,
		Key:      m.Key,
		Value:    m.Value,
		Received: m.Time,
		Token:    m,
	}
}
