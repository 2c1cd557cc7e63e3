package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domainRegistry "sickleave_notifier/internal/domain/registry"
)

const dateLayout = "2006-01-02"

var _ domainRegistry.Eligibility = (*EligibilityClient)(nil)

type sickStatusResponse struct {
	Sick      bool `json:"sykmeldt"`
	FullySick bool `json:"fullSykmeldt"`
}

type sickThroughResponse struct {
	Tom string `json:"tom"`
}

type personResponse struct {
	DeathDate *string `json:"doedsdato"`
}

// EligibilityClient asks the sick-note registry about sick status and the person
// registry about liveness.
type EligibilityClient struct {
	base           *BaseClient
	eligibilityURL string
	personURL      string
}

func NewEligibilityClient(base *BaseClient, eligibilityURL, personURL string) *EligibilityClient {
	return &EligibilityClient{base: base, eligibilityURL: eligibilityURL, personURL: personURL}
}

func (c *EligibilityClient) status(ctx context.Context, fnr string, date time.Time) (sickStatusResponse, error) {
	var out sickStatusResponse
	u := c.eligibilityURL + "/api/v1/sykmeldinger/status?dato=" + url.QueryEscape(date.Format(dateLayout))
	code, err := c.base.GetJSON(ctx, u, fnr, &out)
	if err != nil {
		return out, err
	}
	if code != http.StatusOK {
		return out, &StatusError{URL: u, Code: code}
	}
	return out, nil
}

func (c *EligibilityClient) IsSick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	s, err := c.status(ctx, fnr, date)
	return s.Sick, err
}

func (c *EligibilityClient) IsFullySick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	s, err := c.status(ctx, fnr, date)
	return s.FullySick, err
}

// SickThrough returns ok=false when the registry answers 204 (no current sick note).
func (c *EligibilityClient) SickThrough(ctx context.Context, fnr string) (time.Time, bool, error) {
	var out sickThroughResponse
	u := c.eligibilityURL + "/api/v1/sykmeldinger/sykmeldt-til"
	code, err := c.base.GetJSON(ctx, u, fnr, &out)
	if err != nil {
		return time.Time{}, false, err
	}
	if code == http.StatusNoContent || code == http.StatusNotFound || out.Tom == "" {
		return time.Time{}, false, nil
	}
	tom, err := time.Parse(dateLayout, out.Tom)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse sick-through date %q: %w", out.Tom, err)
	}
	return tom, true, nil
}

func (c *EligibilityClient) IsAlive(ctx context.Context, fnr string) (bool, error) {
	var out personResponse
	u := c.personURL + "/api/v1/person"
	code, err := c.base.GetJSON(ctx, u, fnr, &out)
	if err != nil {
		return false, err
	}
	if code != http.StatusOK {
		return false, &StatusError{URL: u, Code: code}
	}
	return out.DeathDate == nil, nil
}
