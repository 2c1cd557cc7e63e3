package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/clock"
	"sickleave_notifier/internal/infra/logger"
)

// SchedulingService plans the notifications of a case from settlement events.
type SchedulingService struct {
	tx      notification.Transactor
	rules   Rules
	clock   clock.Clock
	metrics metrics.Recorder
	log     *logrus.Entry
}

func NewSchedulingService(tx notification.Transactor, rules Rules, c clock.Clock, recorder metrics.Recorder) *SchedulingService {
	return &SchedulingService{
		tx:      tx,
		rules:   rules.withDefaults(),
		clock:   c,
		metrics: recorder,
		log:     logger.Component("scheduling"),
	}
}

// HandleSettlement records the ledger row and either creates the case's planned
// messages or, for a known case, extends its stop message.
func (s *SchedulingService) HandleSettlement(ctx context.Context, event *notification.SettlementEvent) error {
	now := s.clock.Now()
	log := s.log.WithFields(logrus.Fields{
		"payment_id": event.PaymentID,
		"start_date": event.StartDate.Format(time.DateOnly),
	})

	return s.tx.RunInTx(ctx, func(repo notification.Repository) error {
		exists, err := repo.CaseExists(ctx, event.Fnr, event.StartDate)
		if err != nil {
			return err
		}
		if !exists {
			msgs := s.rules.Plan(event, now)
			if err := repo.InsertCase(ctx, event, msgs); err != nil {
				return fmt.Errorf("failed to insert case: %w", err)
			}
			log.WithField("count", len(msgs)).Info("planned messages created for new case")
			return nil
		}

		if err := repo.InsertEventOnly(ctx, event); err != nil {
			return fmt.Errorf("failed to insert settlement event: %w", err)
		}
		return s.extendStop(ctx, repo, event, log)
	})
}

func (s *SchedulingService) extendStop(ctx context.Context, repo notification.Repository, event *notification.SettlementEvent, log *logrus.Entry) error {
	msgs, err := repo.FindByCase(ctx, event.Fnr, event.StartDate)
	if err != nil {
		return err
	}
	due := s.rules.StopDue(event.Tom)

	for _, m := range msgs {
		if m.Type != notification.TypeStop {
			continue
		}
		log = log.WithField("planned_message_id", m.ID)
		if !due.After(m.SendAt) {
			log.Debug("stop due date unchanged")
			return nil
		}
		switch m.State.(type) {
		case notification.Pending:
			if err := repo.Postpone(ctx, m.ID, due); err != nil {
				return err
			}
		case notification.Cancelled:
			if err := repo.Reopen(ctx, m.ID, due); err != nil {
				return err
			}
			log.Info("cancelled stop message reopened")
		default:
			return nil
		}
		s.metrics.Incr(ctx, metrics.MessagePostponed, string(m.Type))
		log.WithField("sendes", due).Info("stop message postponed")
		return nil
	}
	log.Warn("case has no stop message")
	return nil
}
