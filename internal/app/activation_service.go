package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/domain/registry"
	"sickleave_notifier/internal/infra/clock"
	"sickleave_notifier/internal/infra/logger"
)

// Outcome is what activation decided for a planned message.
type Outcome int

const (
	OutcomeNone Outcome = iota // no longer pending
	OutcomeSent
	OutcomeCancelled
	OutcomePostponed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomePostponed:
		return "postponed"
	}
	return "none"
}

// ActivationService re-checks eligibility when a planned message is due and sends,
// cancels or postpones it.
type ActivationService struct {
	tx          notification.Transactor
	eligibility registry.Eligibility
	sender      *NotificationSender
	rules       Rules
	clock       clock.Clock
	metrics     metrics.Recorder
	log         *logrus.Entry
}

func NewActivationService(
	tx notification.Transactor,
	eligibility registry.Eligibility,
	sender *NotificationSender,
	rules Rules,
	c clock.Clock,
	recorder metrics.Recorder,
) *ActivationService {
	return &ActivationService{
		tx:          tx,
		eligibility: eligibility,
		sender:      sender,
		rules:       rules.withDefaults(),
		clock:       c,
		metrics:     recorder,
		log:         logger.Component("activation"),
	}
}

// Activate resolves one planned message. A message that is no longer pending, or not
// due yet, is left alone.
func (s *ActivationService) Activate(ctx context.Context, id uuid.UUID) (Outcome, error) {
	now := s.clock.Now()
	log := s.log.WithField("planned_message_id", id)
	outcome := OutcomeNone

	err := s.tx.RunInTx(ctx, func(repo notification.Repository) error {
		m, err := repo.FindPending(ctx, id)
		if err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				log.Debug("planned message already resolved")
				return nil
			}
			return err
		}
		log = log.WithField("type", m.Type)
		if m.SendAt.After(now) {
			// Stale or duplicate trigger: the message was postponed or reopened since.
			log.WithField("sendes", m.SendAt).Debug("planned message not due yet")
			return nil
		}

		decision, postponeTo, err := s.decide(ctx, repo, m, now)
		if err != nil {
			return err
		}

		switch decision {
		case OutcomeSent:
			if err := s.sender.Send(ctx, repo, m, now); err != nil {
				return err
			}
		case OutcomeCancelled:
			if err := repo.MarkCancelled(ctx, m.ID, now); err != nil {
				return fmt.Errorf("failed to cancel planned message %s: %w", m.ID, err)
			}
			s.metrics.Incr(ctx, metrics.MessageCancelled, string(m.Type))
			log.Info("planned message cancelled, no longer eligible")
		case OutcomePostponed:
			if err := repo.Postpone(ctx, m.ID, postponeTo); err != nil {
				return err
			}
			s.metrics.Incr(ctx, metrics.MessagePostponed, string(m.Type))
			log.WithField("sendes", postponeTo).Info("stop message postponed, still sick")
		}
		outcome = decision
		return nil
	})
	if err != nil {
		return OutcomeNone, err
	}
	return outcome, nil
}

func (s *ActivationService) decide(ctx context.Context, repo notification.Repository, m *notification.PlannedMessage, now time.Time) (Outcome, time.Time, error) {
	alive, err := s.eligibility.IsAlive(ctx, m.Fnr)
	if err != nil {
		return OutcomeNone, time.Time{}, fmt.Errorf("liveness lookup: %w", err)
	}
	if !alive {
		return OutcomeCancelled, time.Time{}, nil
	}

	today := notification.Today(now)
	var eligible bool
	switch m.Type {
	case notification.Type4Week:
		eligible, err = s.eligibility.IsSick(ctx, m.Fnr, today)
	case notification.Type8Week:
		eligible, err = s.eligibility.IsFullySick(ctx, m.Fnr, today)
		if err == nil && eligible {
			eligible, err = s.noNewerCase(ctx, repo, m)
		}
	case notification.Type39Week:
		eligible, err = s.eligibility.IsSick(ctx, m.Fnr, today)
		if err == nil && eligible {
			eligible, err = s.noNewerCase(ctx, repo, m)
		}
	case notification.TypeStop:
		through, ok, err := s.eligibility.SickThrough(ctx, m.Fnr)
		if err != nil {
			return OutcomeNone, time.Time{}, fmt.Errorf("sick-through lookup: %w", err)
		}
		if ok {
			if due := s.rules.StopDue(through); due.After(m.SendAt) {
				return OutcomePostponed, due, nil
			}
		}
		return OutcomeSent, time.Time{}, nil
	default:
		return OutcomeNone, time.Time{}, notification.Fatal("activate", fmt.Errorf("unhandled type %q", m.Type))
	}
	if err != nil {
		return OutcomeNone, time.Time{}, fmt.Errorf("eligibility lookup: %w", err)
	}
	if !eligible {
		return OutcomeCancelled, time.Time{}, nil
	}
	return OutcomeSent, time.Time{}, nil
}

func (s *ActivationService) noNewerCase(ctx context.Context, repo notification.Repository, m *notification.PlannedMessage) (bool, error) {
	newer, err := repo.NewerCaseExists(ctx, m.Fnr, m.StartDate)
	return !newer, err
}
