package app

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"sickleave_notifier/internal/domain/registry"
	"sickleave_notifier/internal/infra/consumer"
)

const (
	testFnr = "12345678910"
	testOrg = "987654321"
)

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, record string) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

type mockEligibility struct{ mock.Mock }

func (m *mockEligibility) IsSick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	args := m.Called(ctx, fnr, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockEligibility) IsFullySick(ctx context.Context, fnr string, date time.Time) (bool, error) {
	args := m.Called(ctx, fnr, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockEligibility) SickThrough(ctx context.Context, fnr string) (time.Time, bool, error) {
	args := m.Called(ctx, fnr)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *mockEligibility) IsAlive(ctx context.Context, fnr string) (bool, error) {
	args := m.Called(ctx, fnr)
	return args.Bool(0), args.Error(1)
}

type mockEpisodes struct{ mock.Mock }

func (m *mockEpisodes) List(ctx context.Context, fnr string) ([]registry.Episode, error) {
	args := m.Called(ctx, fnr)
	episodes, _ := args.Get(0).([]registry.Episode)
	return episodes, args.Error(1)
}

type mockBackouter struct{ mock.Mock }

func (m *mockBackouter) Backout(ctx context.Context, msg *consumer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockAlerter struct{ mock.Mock }

func (m *mockAlerter) Alert(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

// countingRecorder counts metric increments by name.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) Incr(_ context.Context, metric, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[metric]++
}

func (r *countingRecorder) Count(metric string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[metric]
}
