// AngelaMos | 2026
// pool.go

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/taskmanager/internal/config"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
)

type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

type PoolConfig struct {
	Concurrency    int
	Queues         []string
	PollTimeout    time.Duration
	JobTimeout     time.Duration
	PromoteEvery   time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func PoolConfigFrom(cfg config.JobsConfig) PoolConfig {
	return PoolConfig{
		Concurrency:    cfg.Concurrency,
		Queues:         Queues,
		PollTimeout:    cfg.PollTimeout,
		JobTimeout:     cfg.JobTimeout,
		PromoteEvery:   time.Second,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}
}

type Pool struct {
	broker   Broker
	cfg      PoolConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[Kind]Handler
	now      func() time.Time
}

func NewPool(broker Broker, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = Queues
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.PromoteEvery <= 0 {
		cfg.PromoteEvery = time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 5 * time.Second
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		broker:   broker,
		cfg:      cfg,
		logger:   logger.With("component", "worker_pool"),
		handlers: make(map[Kind]Handler),
		now:      time.Now,
	}
}

func (p *Pool) Register(kind Kind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

func (p *Pool) handler(kind Kind) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[kind]
	return h, ok
}

// Run starts the workers and the delayed-job promoter and blocks until
// ctx is cancelled. Cancelling stops pulling; a job already running keeps
// its own timeout and finishes.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool starting",
		"concurrency", p.cfg.Concurrency,
		"queues", p.cfg.Queues,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p.promote(ctx)
		return nil
	})

	for i := range p.cfg.Concurrency {
		worker := i
		g.Go(func() error {
			p.work(ctx, worker)
			return nil
		})
	}

	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) promote(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PromoteEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.broker.PromoteDue(ctx, p.now()); err != nil && ctx.Err() == nil {
				p.logger.Warn("promote delayed jobs failed", "error", err)
			}
		}
	}
}

func (p *Pool) work(ctx context.Context, worker int) {
	log := p.logger.With("worker", worker)

	for ctx.Err() == nil {
		job, err := p.broker.Pop(ctx, p.cfg.Queues, p.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("pop job failed", "error", err)
			sleep(ctx, p.cfg.PollTimeout)
			continue
		}
		if job == nil {
			continue
		}

		p.Process(context.WithoutCancel(ctx), job)
	}
}

// Process runs one job to an outcome: done, rescheduled or buried.
func (p *Pool) Process(ctx context.Context, job *Job) {
	log := p.logger.With(
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempt", job.Attempt+1,
	)

	h, ok := p.handler(job.Kind)
	if !ok {
		job.LastError = ErrUnknownKind.Error()
		log.Error("no handler for job kind, burying")
		p.bury(ctx, job, "unknown")
		return
	}

	start := p.now()
	err := p.run(ctx, h, job)
	metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.JobsProcessed.WithLabelValues(string(job.Kind), "ok").Inc()
		log.Debug("job completed")
		return
	}

	job.Attempt++
	job.LastError = err.Error()

	if IsPermanent(err) || job.Exhausted() {
		log.Error("job failed permanently",
			"error", err,
			"attempts", job.Attempt,
			"max_attempts", job.MaxAttempts,
		)
		p.bury(ctx, job, "dead")
		return
	}

	delay := p.RetryDelay(job.Attempt)
	if pushErr := p.broker.PushDelayed(ctx, job, p.now().Add(delay)); pushErr != nil {
		log.Error("reschedule job failed, burying", "error", pushErr, "job_error", err)
		p.bury(ctx, job, "dead")
		return
	}

	metrics.JobsProcessed.WithLabelValues(string(job.Kind), "retry").Inc()
	log.Warn("job failed, retrying", "error", err, "retry_in", delay)
}

func (p *Pool) run(ctx context.Context, h Handler, job *Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	ctx, span := core.StartSpan(ctx, "job."+string(job.Kind),
		attribute.String("job.id", job.ID),
		attribute.Int("job.attempt", job.Attempt+1),
	)
	defer func() { core.EndSpan(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()

	if err := h.Handle(ctx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return fmt.Errorf("job timed out after %s: %w", p.cfg.JobTimeout, err)
		}
		return err
	}
	return nil
}

func (p *Pool) bury(ctx context.Context, job *Job, outcome string) {
	metrics.JobsProcessed.WithLabelValues(string(job.Kind), outcome).Inc()
	if err := p.broker.Bury(ctx, job); err != nil {
		p.logger.Error("bury job failed", "job_id", job.ID, "error", err)
	}
}

// RetryDelay is the wait before the given retry: exponential from the
// base delay, capped, with jitter.
func (p *Pool) RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryBaseDelay
	b.MaxInterval = p.cfg.RetryMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
