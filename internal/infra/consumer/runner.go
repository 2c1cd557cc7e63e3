// Package consumer runs one sequential consumption loop per event source.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/clock"
	"sickleave_notifier/internal/infra/logger"
)

const (
	DefaultIdleBackoff  = time.Second
	DefaultRetryBackoff = 5 * time.Second
)

// Message is one record fetched from a source. Token is owned by the source and
// carries whatever it needs to commit or reject the record.
type Message struct {
	Source   string
	Key      []byte
	Value    []byte
	Received time.Time
	Token    any
}

// Source is a non-blocking, at-least-once event source.
type Source interface {
	// Fetch returns the next record, or nil when nothing is available right now.
	Fetch(ctx context.Context) (*Message, error)
	// Commit marks the record processed so it is not delivered again.
	Commit(ctx context.Context, msg *Message) error
	// Reject leaves the record unprocessed so the next Fetch returns it again.
	Reject(ctx context.Context, msg *Message) error
}

type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Runner processes one source strictly sequentially until ctx is done or a fatal
// error occurs.
type Runner struct {
	name    string
	source  Source
	handler Handler
	clock   clock.Clock
	metrics metrics.Recorder
	idle    time.Duration
	retry   time.Duration
	log     *logrus.Entry
}

type Option func(*Runner)

func WithClock(c clock.Clock) Option { return func(r *Runner) { r.clock = c } }

func WithMetrics(m metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }

func WithIdleBackoff(d time.Duration) Option { return func(r *Runner) { r.idle = d } }

func WithRetryBackoff(d time.Duration) Option { return func(r *Runner) { r.retry = d } }

func NewRunner(name string, source Source, handler Handler, opts ...Option) *Runner {
	r := &Runner{
		name:    name,
		source:  source,
		handler: handler,
		clock:   clock.System{},
		metrics: noopRecorder{},
		idle:    DefaultIdleBackoff,
		retry:   DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Component(name)
	return r
}

func (r *Runner) Name() string { return r.name }

// Run returns nil when ctx is cancelled and an error when the loop must stop.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("consumption loop started")
	defer r.log.Info("consumption loop stopped")

	for ctx.Err() == nil {
		msg, err := r.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if notification.IsFatal(err) {
				return fmt.Errorf("%s: fetch: %w", r.name, err)
			}
			r.log.WithError(err).Warn("fetch failed, backing off")
			r.pause(ctx, r.retry)
			continue
		}
		if msg == nil {
			r.pause(ctx, r.idle)
			continue
		}

		if err := r.process(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) process(ctx context.Context, msg *Message) error {
	err := r.handler.Handle(ctx, msg)
	switch kind := notification.KindOf(err); {
	case err == nil:
		r.metrics.Incr(ctx, metrics.EventProcessed, r.name)
	case kind == notification.KindFatal:
		r.metrics.Incr(ctx, metrics.EventFailed, r.name)
		r.log.WithError(err).WithField("key", string(msg.Key)).Error("fatal error, stopping loop")
		return fmt.Errorf("%s: %w", r.name, err)
	case kind == notification.KindBusiness:
		// Not retried: reported and committed.
		r.metrics.Incr(ctx, metrics.EventFailed, r.name)
		r.log.WithError(err).WithField("key", string(msg.Key)).Error("event rejected by business rule")
	default:
		r.metrics.Incr(ctx, metrics.EventFailed, r.name)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		r.log.WithError(err).WithField("key", string(msg.Key)).Warn("event left unprocessed, will be retried")
		if rerr := r.source.Reject(ctx, msg); rerr != nil {
			r.log.WithError(rerr).Warn("reject failed")
		}
		r.pause(ctx, r.retry)
		return nil
	}

	if err := r.source.Commit(ctx, msg); err != nil {
		if notification.IsFatal(err) {
			return fmt.Errorf("%s: commit: %w", r.name, err)
		}
		r.log.WithError(err).Warn("commit failed, record may be delivered again")
		r.pause(ctx, r.retry)
	}
	return nil
}

func (r *Runner) pause(ctx context.Context, d time.Duration) {
	_ = r.clock.Sleep(ctx, d)
}

type noopRecorder struct{}

func (noopRecorder) Incr(context.Context, string, string) {}
