package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/logger"
)

// TriggerPublisher enqueues activation triggers.
type TriggerPublisher interface {
	Publish(ctx context.Context, ids []uuid.UUID) error
}

// DefaultResendAfter is how long a published id is held back before it is published again.
const DefaultResendAfter = 10 * time.Minute

// DueScanner periodically lists pending planned messages whose due time has passed
// and publishes one activation trigger for each. An id stays unpublished for
// resendAfter after its trigger went out, so a slow activation loop is not flooded
// with duplicates; a lost trigger is retried after that.
type DueScanner struct {
	cronEngine  *cron.Cron
	repo        notification.Repository
	publisher   TriggerPublisher
	cronSpec    string
	batchSize   int
	resendAfter time.Duration
	now         func() time.Time
	log         *logrus.Entry

	mu        sync.Mutex
	published map[uuid.UUID]time.Time
}

type Option func(*DueScanner)

func WithResendAfter(d time.Duration) Option { return func(s *DueScanner) { s.resendAfter = d } }

func NewDueScanner(repo notification.Repository, publisher TriggerPublisher, cronSpec string, batchSize int, opts ...Option) *DueScanner {
	s := &DueScanner{
		// SkipIfStillRunning keeps a slow scan from overlapping the next one.
		cronEngine: cron.New(
			cron.WithLocation(notification.Oslo),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		repo:        repo,
		publisher:   publisher,
		cronSpec:    cronSpec,
		batchSize:   batchSize,
		resendAfter: DefaultResendAfter,
		now:         time.Now,
		log:         logger.Component("due-scanner"),
		published:   make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the scan job. An invalid cron spec is returned, not fatal-logged.
func (s *DueScanner) Start() error {
	s.log.Info("Starting due scanner...")
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Scan(ctx); err != nil {
			s.log.WithError(err).Error("due scan failed")
		}
	})
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	s.log.WithField("spec", s.cronSpec).Info("Due scanner started.")
	return nil
}

// Scan publishes triggers for due messages not published recently, one batch at a
// time, and returns how many it published.
func (s *DueScanner) Scan(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, at := range s.published {
		if now.Sub(at) >= s.resendAfter {
			delete(s.published, id)
		}
	}

	// Held-back ids may fill the head of the due list, so look past them.
	due, err := s.repo.ListDue(ctx, now, s.batchSize+len(s.published))
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(due))
	for _, id := range due {
		if _, held := s.published[id]; held {
			continue
		}
		if len(ids) == s.batchSize {
			break
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		s.log.WithField("held_back", len(due)).Debug("no due planned messages to publish")
		return 0, nil
	}
	if err := s.publisher.Publish(ctx, ids); err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.published[id] = now
	}
	s.log.WithField("count", len(ids)).Info("activation triggers published")
	return len(ids), nil
}

// Stop waits for a running scan to finish.
func (s *DueScanner) Stop() {
	s.log.Info("Stopping due scanner...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info("Due scanner gracefully stopped.")
}
