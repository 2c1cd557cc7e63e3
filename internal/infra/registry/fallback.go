package registry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	domainRegistry "sickleave_notifier/internal/domain/registry"
	"sickleave_notifier/internal/infra/logger"
)

// Permissive answers with defaults when the wrapped registry fails: sick, fully sick,
// alive, no sick-through date and no episodes. Only wired outside production so
// local and test environments are not blocked by missing registry data.
type Permissive struct {
	eligibility domainRegistry.Eligibility
	episodes    domainRegistry.Episodes
	log         *logrus.Entry
}

func NewPermissive(eligibility domainRegistry.Eligibility, episodes domainRegistry.Episodes) *Permissive {
	return &Permissive{eligibility: eligibility, episodes: episodes, log: logger.Component("registry-fallback")}
}

func (p *Permissive) fallback(op string, err error) {
	p.log.WithError(err).WithField("op", op).Warn("registry lookup failed, using permissive default")
}

func (p *Permissive) IsSick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	ok, err := p.eligibility.IsSick(ctx, fnr, date)
	if err != nil {
		p.fallback("IsSick", err)
		return true, nil
	}
	return ok, nil
}

func (p *Permissive) IsFullySick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	ok, err := p.eligibility.IsFullySick(ctx, fnr, date)
	if err != nil {
		p.fallback("IsFullySick", err)
		return true, nil
	}
	return ok, nil
}

func (p *Permissive) SickThrough(ctx context.Context, fnr string) (time.Time, bool, error) {
	tom, ok, err := p.eligibility.SickThrough(ctx, fnr)
	if err != nil {
		p.fallback("SickThrough", err)
		return time.Time{}, false, nil
	}
	return tom, ok, nil
}

func (p *Permissive) IsAlive(ctx context.Context, fnr string) (bool, error) {
	ok, err := p.eligibility.IsAlive(ctx, fnr)
	if err != nil {
		p.fallback("IsAlive", err)
		return true, nil
	}
	return ok, nil
}

func (p *Permissive) List(ctx context.Context, fnr string) ([]domainRegistry.Episode, error) {
	eps, err := p.episodes.List(ctx, fnr)
	if err != nil {
		p.fallback("List", err)
		return nil, nil
	}
	return eps, nil
}
