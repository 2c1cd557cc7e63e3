// Package queue carries activation triggers over SQS: the due scanner publishes one
// trigger per due planned message and the activation loop consumes them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/infra/logger"
)

const maxBatch = 10 // SQS batch limit

// Trigger is the body of one activation trigger.
type Trigger struct {
	PlannedMessageID uuid.UUID `json:"planlagtMeldingId"`
}

// SQSAPI is the part of *sqs.Client used here.
type SQSAPI interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

type TriggerPublisher struct {
	client   SQSAPI
	queueURL string
}

func NewTriggerPublisher(client SQSAPI, queueURL string) *TriggerPublisher {
	return &TriggerPublisher{client: client, queueURL: queueURL}
}

// Publish enqueues one trigger per id in batches of ten. Duplicates are harmless:
// activation of a message that is no longer pending does nothing.
func (p *TriggerPublisher) Publish(ctx context.Context, ids []uuid.UUID) error {
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		entries := make([]sqsTypes.SendMessageBatchRequestEntry, 0, end-start)
		for i, id := range ids[start:end] {
			body, err := json.Marshal(Trigger{PlannedMessageID: id})
			if err != nil {
				return fmt.Errorf("queue: failed to marshal trigger: %w", err)
			}
			entries = append(entries, sqsTypes.SendMessageBatchRequestEntry{
				Id:          aws.String(strconv.Itoa(i)),
				MessageBody: aws.String(string(body)),
				MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
					"type": {DataType: aws.String("String"), StringValue: aws.String("activation")},
				},
			})
		}

		out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("queue: failed to send triggers to %s: %w", p.queueURL, err)
		}
		if len(out.Failed) > 0 {
			// The scanner picks up whatever is still due on its next run.
			logger.Log.WithFields(logrus.Fields{
				"queue_url": p.queueURL,
				"failed":    len(out.Failed),
			}).Warn("some activation triggers were not enqueued")
		}
	}
	return nil
}
