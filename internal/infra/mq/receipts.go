package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"sickleave_notifier/internal/infra/consumer"
)

// ReceiptSource polls the receipt queue with basic.get, so an empty queue returns at
// once and the loop backs off on its own clock.
type ReceiptSource struct {
	ch           Channel
	queue        string
	backoutQueue string
}

func NewReceiptSource(ch Channel, queue, backoutQueue string) *ReceiptSource {
	return &ReceiptSource{ch: ch, queue: queue, backoutQueue: backoutQueue}
}

func (s *ReceiptSource) Fetch(context.Context) (*consumer.Message, error) {
	d, ok, err := s.ch.Get(s.queue, false)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", s.queue, err)
	}
	if !ok {
		return nil, nil
	}
	return &consumer.Message{
		Source:   s.queue,
		Key:      []byte(d.CorrelationId),
		Value:    d.Body,
		Received: d.Timestamp,
		Token:    d,
	}, nil
}

// Commit acknowledges the receipt. Called once per receipt whatever the outcome.
func (s *ReceiptSource) Commit(_ context.Context, msg *consumer.Message) error {
	d, err := delivery(msg)
	if err != nil {
		return err
	}
	if err := s.ch.Ack(d.DeliveryTag, false); err != nil {
		return fmt.Errorf("ack receipt %s: %w", d.CorrelationId, err)
	}
	return nil
}

// Reject returns the receipt to the queue for another attempt.
func (s *ReceiptSource) Reject(_ context.Context, msg *consumer.Message) error {
	d, err := delivery(msg)
	if err != nil {
		return err
	}
	return s.ch.Nack(d.DeliveryTag, false, true)
}

// Backout forwards the receipt unchanged to the backout queue.
func (s *ReceiptSource) Backout(ctx context.Context, msg *consumer.Message) error {
	d, err := delivery(msg)
	if err != nil {
		return err
	}
	err = s.ch.PublishWithContext(ctx, "", s.backoutQueue, false, false, amqp.Publishing{
		Headers:         d.Headers,
		ContentType:     d.ContentType,
		ContentEncoding: d.ContentEncoding,
		DeliveryMode:    amqp.Persistent,
		CorrelationId:   d.CorrelationId,
		MessageId:       d.MessageId,
		Timestamp:       d.Timestamp,
		Type:            d.Type,
		Body:            d.Body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.backoutQueue, err)
	}
	return nil
}

func delivery(msg *consumer.Message) (amqp.Delivery, error) {
	d, ok := msg.Token.(amqp.Delivery)
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("message from %s is not an amqp delivery", msg.Source)
	}
	return d, nil
}
