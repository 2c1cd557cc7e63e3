// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/legacy"
	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/logger"
	"sickleave_notifier/internal/infra/wire"
)

// NotificationSender is the send path shared by activation and reconciliation:
// encode, hand to the legacy transport, and record the correlation id.
type NotificationSender struct {
	sender  legacy.Sender
	metrics metrics.Recorder
}

func NewNotificationSender(sender legacy.Sender, recorder metrics.Recorder) *NotificationSender {
	return &NotificationSender{sender: sender, metrics: recorder}
}

// Send must run inside the caller's transaction so MarkSent commits with the decision.
func (s *NotificationSender) Send(ctx context.Context, repo notification.Repository, m *notification.PlannedMessage, now time.Time) error {
	in := wire.Input{Message: *m, Now: now.In(notification.Oslo)}
	if m.Type == notification.Type39Week {
		event, err := repo.LatestEvent(ctx, m.Fnr, m.StartDate)
		if err != nil {
			if errors.Is(err, notification.ErrEventNotFound) {
				return notification.Fatal("send "+m.ID.String(), fmt.Errorf("no settlement event for case: %w", err))
			}
			return fmt.Errorf("failed to load settlement event for %s: %w", m.ID, err)
		}
		in.MaxDate = event.MaxDate
		in.OrgNumber = event.OrgNumber
	}

	record, err := wire.Encode(in)
	if err != nil {
		return notification.Fatal("encode "+string(m.Type), err)
	}

	correlationID, err := s.sender.Send(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to send planned message %s: %w", m.ID, err)
	}
	if err := repo.MarkSent(ctx, m.ID, now, correlationID); err != nil {
		return fmt.Errorf("failed to mark planned message %s sent: %w", m.ID, err)
	}

	s.metrics.Incr(ctx, metrics.MessageSent, string(m.Type))
	logger.Log.WithFields(logrus.Fields{
		"planned_message_id": m.ID,
		"type":               m.Type,
		"correlation_id":     correlationID,
	}).Info("planned message sent")
	return nil
}
