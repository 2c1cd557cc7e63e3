package app

import (
	"context"
	"encoding/json"

	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/consumer"
	"sickleave_notifier/internal/infra/queue"
)

// SettlementHandler feeds settlement records into the scheduling service.
func SettlementHandler(s *SchedulingService) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		event, err := DecodeSettlement(msg.Value, msg.Received)
		if err != nil {
			return err
		}
		return s.HandleSettlement(ctx, event)
	})
}

// SickNoteHandler feeds sick notes into the reconciliation service.
func SickNoteHandler(s *ReconciliationService) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		note, err := DecodeSickNote(msg.Value)
		if err != nil {
			return err
		}
		return s.HandleSickNote(ctx, note)
	})
}

// PersonEventHandler feeds person events into the death service.
func PersonEventHandler(s *DeathService) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		event, err := DecodePersonEvent(msg.Value)
		if err != nil {
			return err
		}
		return s.HandlePersonEvent(ctx, event)
	})
}

// ActivationHandler runs one activation per trigger.
func ActivationHandler(s *ActivationService) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		var trigger queue.Trigger
		if err := json.Unmarshal(msg.Value, &trigger); err != nil {
			return notification.Business("decode trigger", err)
		}
		_, err := s.Activate(ctx, trigger.PlannedMessageID)
		return err
	})
}
