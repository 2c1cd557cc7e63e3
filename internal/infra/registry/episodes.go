package registry

import (
	"context"
	"fmt"
	"time"

	domainRegistry "sickleave_notifier/internal/domain/registry"
)

var _ domainRegistry.Episodes = (*EpisodesClient)(nil)

type episodeResponse struct {
	StartDate string           `json:"oppfolgingsdato"`
	Periods   []periodResponse `json:"sykmeldingsperioder"`
}

type periodResponse struct {
	Fom    string `json:"fom"`
	Tom    string `json:"tom"`
	Graded bool   `json:"gradert"`
}

// EpisodesClient lists sick-leave episodes. A 404 or 204 means the person has none.
type EpisodesClient struct {
	base *BaseClient
	url  string
}

func NewEpisodesClient(base *BaseClient, baseURL string) *EpisodesClient {
	return &EpisodesClient{base: base, url: baseURL + "/api/v1/sykeforloep"}
}

func (c *EpisodesClient) List(ctx context.Context, fnr string) ([]domainRegistry.Episode, error) {
	var out []episodeResponse
	if _, err := c.base.GetJSON(ctx, c.url, fnr, &out); err != nil {
		return nil, err
	}

	episodes := make([]domainRegistry.Episode, 0, len(out))
	for _, e := range out {
		start, err := time.Parse(dateLayout, e.StartDate)
		if err != nil {
			return nil, fmt.Errorf("parse episode start %q: %w", e.StartDate, err)
		}
		ep := domainRegistry.Episode{StartDate: start}
		for _, p := range e.Periods {
			fom, err := time.Parse(dateLayout, p.Fom)
			if err != nil {
				return nil, fmt.Errorf("parse period fom %q: %w", p.Fom, err)
			}
			tom, err := time.Parse(dateLayout, p.Tom)
			if err != nil {
				return nil, fmt.Errorf("parse period tom %q: %w", p.Tom, err)
			}
			ep.Periods = append(ep.Periods, domainRegistry.Period{Fom: fom, Tom: tom, Graded: p.Graded})
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}
