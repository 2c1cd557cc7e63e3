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

const DefaultReconciliationDelay = 10 * time.Second

// SickNote is a newly submitted sick note.
type SickNote struct {
	ID      string
	Fnr     string
	Periods []registry.Period
}

// Graded reports whether any period leaves partial work capacity.
func (n SickNote) Graded() bool {
	for _, p := range n.Periods {
		if p.Graded {
			return true
		}
	}
	return false
}

// Span returns the earliest fom and the latest tom of the note.
func (n SickNote) Span() (fom, tom time.Time) {
	for i, p := range n.Periods {
		if i == 0 || p.Fom.Before(fom) {
			fom = p.Fom
		}
		if i == 0 || p.Tom.After(tom) {
			tom = p.Tom
		}
	}
	return fom, tom
}

// ReconciliationService adjusts a person's planned messages when a sick note arrives.
type ReconciliationService struct {
	tx       notification.Transactor
	episodes registry.Episodes
	sender   *NotificationSender
	rules    Rules
	clock    clock.Clock
	delay    time.Duration
	metrics  metrics.Recorder
	log      *logrus.Entry
}

func NewReconciliationService(
	tx notification.Transactor,
	episodes registry.Episodes,
	sender *NotificationSender,
	rules Rules,
	c clock.Clock,
	delay time.Duration,
	recorder metrics.Recorder,
) *ReconciliationService {
	return &ReconciliationService{
		tx:       tx,
		episodes: episodes,
		sender:   sender,
		rules:    rules.withDefaults(),
		clock:    c,
		delay:    delay,
		metrics:  recorder,
		log:      logger.Component("reconciliation"),
	}
}

// isCandidate selects cancelled letters that may be reinstated and the pending stop.
func isCandidate(m *notification.PlannedMessage) bool {
	switch m.Type {
	case notification.Type8Week, notification.Type39Week:
		return m.IsCancelled()
	case notification.TypeStop:
		return m.IsPending()
	}
	return false
}

func (s *ReconciliationService) HandleSickNote(ctx context.Context, note SickNote) error {
	if len(note.Periods) == 0 {
		return nil
	}
	log := s.log.WithField("sick_note_id", note.ID)

	// The episode registry indexes new notes with a lag.
	if err := s.clock.Sleep(ctx, s.delay); err != nil {
		return err
	}

	var candidates []*notification.PlannedMessage
	err := s.tx.RunInTx(ctx, func(repo notification.Repository) error {
		msgs, err := repo.FindByPerson(ctx, note.Fnr)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if isCandidate(m) {
				candidates = append(candidates, m)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Debug("no planned messages to reconcile")
		return nil
	}

	episodes, err := s.episodes.List(ctx, note.Fnr)
	if err != nil {
		return fmt.Errorf("failed to list sick-leave episodes: %w", err)
	}
	fom, tom := note.Span()
	startDate, ok := registry.StartDateFor(episodes, fom, tom)
	if !ok {
		log.Info("sick note matches no known episode")
		return nil
	}

	graded := note.Graded()
	var errs []error
	matched := 0
	for _, c := range candidates {
		if !notification.SameDate(c.StartDate, startDate) {
			continue
		}
		if c.Type == notification.Type8Week && graded {
			continue
		}
		matched++
		if err := s.reconcile(ctx, c, tom); err != nil {
			// Other candidates are independent and still get reconciled.
			log.WithError(err).WithField("planned_message_id", c.ID).Warn("reconciliation failed for planned message")
			errs = append(errs, err)
		}
	}
	if matched == 0 {
		log.WithField("start_date", startDate.Format(time.DateOnly)).Info("no planned messages match the sick note's case")
	}
	return errors.Join(errs...)
}

// reconcile re-reads the message in its own transaction so it acts on current state.
func (s *ReconciliationService) reconcile(ctx context.Context, candidate *notification.PlannedMessage, lastSickDay time.Time) error {
	now := s.clock.Now()
	log := s.log.WithFields(logrus.Fields{"planned_message_id": candidate.ID, "type": candidate.Type})

	return s.tx.RunInTx(ctx, func(repo notification.Repository) error {
		msgs, err := repo.FindByCase(ctx, candidate.Fnr, candidate.StartDate)
		if err != nil {
			return err
		}
		m := findByID(msgs, candidate.ID)
		if m == nil || !isCandidate(m) {
			log.Debug("planned message changed since it was selected")
			return nil
		}

		if m.Type == notification.TypeStop {
			due := s.rules.StopDue(lastSickDay)
			if !due.After(m.SendAt) {
				return nil
			}
			if err := repo.Postpone(ctx, m.ID, due); err != nil {
				return err
			}
			s.metrics.Incr(ctx, metrics.MessagePostponed, string(m.Type))
			log.WithField("sendes", due).Info("stop message postponed by sick note")
			return nil
		}

		if err := repo.Reopen(ctx, m.ID, now); err != nil {
			return err
		}
		m.State = notification.Pending{}
		m.SendAt = now
		log.Info("cancelled planned message reopened for immediate send")
		return s.sender.Send(ctx, repo, m, now)
	})
}

func findByID(msgs []*notification.PlannedMessage, id uuid.UUID) *notification.PlannedMessage {
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}
