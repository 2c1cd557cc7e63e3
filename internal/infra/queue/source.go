package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"sickleave_notifier/internal/infra/consumer"
)

const SourceName = "activation"

// TriggerSource polls the trigger queue without long polling and hands messages out
// one at a time.
type TriggerSource struct {
	client   SQSAPI
	queueURL string
	buffer   []sqsTypes.Message
}

func NewTriggerSource(client SQSAPI, queueURL string) *TriggerSource {
	return &TriggerSource{client: client, queueURL: queueURL}
}

func (s *TriggerSource) Fetch(ctx context.Context) (*consumer.Message, error) {
	if len(s.buffer) == 0 {
		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: maxBatch,
			WaitTimeSeconds:     0,
		})
		if err != nil {
			return nil, fmt.Errorf("queue: failed to receive from %s: %w", s.queueURL, err)
		}
		s.buffer = out.Messages
	}
	if len(s.buffer) == 0 {
		return nil, nil
	}

	m := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &consumer.Message{
		Source: SourceName,
		Key:    []byte(aws.ToString(m.MessageId)),
		Value:  []byte(aws.ToString(m.Body)),
		Token:  aws.ToString(m.ReceiptHandle),
	}, nil
}

func (s *TriggerSource) Commit(ctx context.Context, msg *consumer.Message) error {
	handle, _ := msg.Token.(string)
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to delete trigger %s: %w", msg.Key, err)
	}
	return nil
}

// Reject makes the trigger visible again right away.
func (s *TriggerSource) Reject(ctx context.Context, msg *consumer.Message) error {
	handle, _ := msg.Token.(string)
	_, err := s.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(s.queueURL),
		ReceiptHandle:     aws.String(handle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("queue: failed to release trigger %s: %w", msg.Key, err)
	}
	return nil
}
