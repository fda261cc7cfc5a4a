// Package pipeline keeps a session's feeds loaded. When configured it retries
// a failed load with exponential backoff and reloads on an interval.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = time.Minute
)

// FeedLoader loads all feeds into the session. A non-nil error means the
// records feed could not be read and the load should be retried.
type FeedLoader interface {
	Load(ctx context.Context) error
}

// Pipeline drives repeated feed loads.
type Pipeline struct {
	target         FeedLoader
	interval       time.Duration
	retry          bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithRetry retries a failed load, waiting initial before the first retry and
// doubling up to maxBackoff. Zero durations keep the defaults.
func WithRetry(initial, maxBackoff time.Duration) Option {
	return func(p *Pipeline) {
		p.retry = true
		if initial > 0 {
			p.initialBackoff = initial
		}
		if maxBackoff > 0 {
			p.maxBackoff = maxBackoff
		}
	}
}

// New creates a Pipeline. An interval of zero loads once and then returns.
func New(target FeedLoader, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		target:         target,
		interval:       interval,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		clock:          clockwork.NewRealClock(),
		logger:         logger,
		metrics:        metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run loads the feeds until the context is cancelled. Without a refresh
// interval it returns after the first successful load, or after the first
// failed one when retry is off; the failure is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("feed refresh started", "interval", p.interval)
	p.metrics.RefreshRunning.Set(1)
	defer p.metrics.RefreshRunning.Set(0)

	backoff := p.initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("feed refresh stopping", "reason", ctx.Err())
			return nil
		}

		start := p.clock.Now()
		err := p.target.Load(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			p.metrics.FeedLoads.WithLabelValues("error").Inc()
			if p.retry {
				p.logger.Error("feed load failed", "error", err, "retry_in", backoff)
				if !p.sleep(ctx, backoff) {
					return nil
				}
				backoff = nextBackoff(backoff, p.maxBackoff)
				continue
			}
			if p.interval <= 0 {
				return err
			}
			p.logger.Error("feed load failed", "error", err, "next_refresh_in", p.interval)
			if !p.sleep(ctx, p.interval) {
				return nil
			}
			continue
		}

		p.metrics.FeedLoads.WithLabelValues("success").Inc()
		p.logger.Info("feeds loaded", "duration", p.clock.Since(start))
		backoff = p.initialBackoff

		if p.interval <= 0 {
			return nil
		}
		if !p.sleep(ctx, p.interval) {
			return nil
		}
	}
}

// sleep waits for d on the pipeline clock. Returns false if the context
// ended first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
