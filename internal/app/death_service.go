package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/logger"
)

const (
	OpplysningstypeDeath  = "DOEDSFALL_V1"
	EndringstypeCreated   = "OPPRETTET"
	EndringstypeCorrected = "KORRIGERT"
)

// PersonEvent is a change notice from the person registry.
type PersonEvent struct {
	ID              string
	Opplysningstype string
	Endringstype    string
	PersonIdents    []string
	Created         time.Time
}

// IsDeath reports whether the event registers or corrects a death.
func (e PersonEvent) IsDeath() bool {
	return e.Opplysningstype == OpplysningstypeDeath &&
		(e.Endringstype == EndringstypeCreated || e.Endringstype == EndringstypeCorrected)
}

// DeathService cancels every pending message of persons reported dead.
type DeathService struct {
	tx      notification.Transactor
	metrics metrics.Recorder
	log     *logrus.Entry
}

func NewDeathService(tx notification.Transactor, recorder metrics.Recorder) *DeathService {
	return &DeathService{tx: tx, metrics: recorder, log: logger.Component("death")}
}

func (s *DeathService) HandlePersonEvent(ctx context.Context, event PersonEvent) error {
	log := s.log.WithFields(logrus.Fields{
		"event_id":        event.ID,
		"opplysningstype": event.Opplysningstype,
		"endringstype":    event.Endringstype,
	})
	if !event.IsDeath() {
		log.Debug("person event ignored")
		return nil
	}

	return s.tx.RunInTx(ctx, func(repo notification.Repository) error {
		n, err := repo.CancelAllPendingForPersons(ctx, event.PersonIdents, event.Created)
		if err != nil {
			return fmt.Errorf("failed to cancel planned messages after death: %w", err)
		}
		if n > 0 {
			s.metrics.Incr(ctx, metrics.MessageCancelled, "death")
		}
		log.WithField("cancelled", n).Info("pending planned messages cancelled after death")
		return nil
	})
}
