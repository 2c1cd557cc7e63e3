package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainRegistry "sickleave_notifier/internal/domain/registry"
)

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestBase() *BaseClient {
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", DefaultRetryPolicy(), WithSleepFunc(noopSleep))
}

func TestEligibility_IsSickAndFullySick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345678910", r.Header.Get(PersonIdentHeader))
		assert.Equal(t, "2020-07-02", r.URL.Query().Get("dato"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sykmeldt":true,"fullSykmeldt":false}`))
	}))
	defer server.Close()

	c := NewEligibilityClient(newTestBase(), server.URL, server.URL)
	date := time.Date(2020, 7, 2, 0, 0, 0, 0, time.UTC)

	sick, err := c.IsSick(context.Background(), "12345678910", date)
	require.NoError(t, err)
	assert.True(t, sick)

	full, err := c.IsFullySick(context.Background(), "12345678910", date)
	require.NoError(t, err)
	assert.False(t, full)
}

func TestEligibility_SickThrough(t *testing.T) {
	var noContent atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if noContent.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(`{"tom":"2020-08-31"}`))
	}))
	defer server.Close()
	c := NewEligibilityClient(newTestBase(), server.URL, server.URL)

	tom, ok, err := c.SickThrough(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2020, 8, 31, 0, 0, 0, 0, time.UTC), tom)

	noContent.Store(true)
	_, ok, err = c.SickThrough(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEligibility_IsAlive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(PersonIdentHeader) == "dead" {
			w.Write([]byte(`{"doedsdato":"2021-01-01"}`))
			return
		}
		w.Write([]byte(`{"doedsdato":null}`))
	}))
	defer server.Close()
	c := NewEligibilityClient(newTestBase(), server.URL, server.URL)

	alive, err := c.IsAlive(context.Background(), "alive")
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = c.IsAlive(context.Background(), "dead")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestBaseClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"sykmeldt":true,"fullSykmeldt":true}`))
	}))
	defer server.Close()

	c := NewEligibilityClient(newTestBase(), server.URL, server.URL)
	full, err := c.IsFullySick(context.Background(), "1", time.Now())
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_GivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewEligibilityClient(newTestBase(), server.URL, server.URL)
	_, err := c.IsSick(context.Background(), "1", time.Now())
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestEpisodes_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sykeforloep", r.URL.Path)
		w.Write([]byte(`[{"oppfolgingsdato":"2020-05-02","sykmeldingsperioder":[
			{"fom":"2020-05-02","tom":"2020-05-30","gradert":false},
			{"fom":"2020-05-31","tom":"2020-06-30","gradert":true}]}]`))
	}))
	defer server.Close()

	eps, err := NewEpisodesClient(newTestBase(), server.URL).List(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, time.Date(2020, 5, 2, 0, 0, 0, 0, time.UTC), eps[0].StartDate)
	require.Len(t, eps[0].Periods, 2)
	assert.True(t, eps[0].Periods[1].Graded)

	start, ok := domainRegistry.StartDateFor(eps, time.Date(2020, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, eps[0].StartDate, start)
}

func TestEpisodes_NotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	eps, err := NewEpisodesClient(newTestBase(), server.URL).List(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, eps)
}

type failingRegistry struct{}

func (failingRegistry) IsSick(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("down")
}
func (failingRegistry) IsFullySick(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("down")
}
func (failingRegistry) SickThrough(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("down")
}
func (failingRegistry) IsAlive(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingRegistry) List(context.Context, string) ([]domainRegistry.Episode, error) {
	return nil, errors.New("down")
}

func TestPermissive_DefaultsOnFailure(t *testing.T) {
	p := NewPermissive(failingRegistry{}, failingRegistry{})
	ctx := context.Background()

	sick, err := p.IsSick(ctx, "1", time.Now())
	require.NoError(t, err)
	assert.True(t, sick)

	alive, err := p.IsAlive(ctx, "1")
	require.NoError(t, err)
	assert.True(t, alive)

	_, ok, err := p.SickThrough(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	eps, err := p.List(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, eps)
}
