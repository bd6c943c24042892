// AngelaMos | 2026
// client.go

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/taskmanager/internal/metrics"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, def Definition, payload any, opts ...EnqueueOption) (*Job, error)
}

type enqueueOptions struct {
	uniqueKey string
	uniqueTTL time.Duration
	delay     time.Duration
}

type EnqueueOption func(*enqueueOptions)

// WithUniqueKey drops the enqueue with ErrDuplicateJob if the same key was
// used within ttl.
func WithUniqueKey(key string, ttl time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.uniqueKey = key
		o.uniqueTTL = ttl
	}
}

func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.delay = d
	}
}

type Client struct {
	broker Broker
	now    func() time.Time
}

func NewClient(broker Broker) *Client {
	return &Client{broker: broker, now: time.Now}
}

func (c *Client) Enqueue(
	ctx context.Context,
	def Definition,
	payload any,
	opts ...EnqueueOption,
) (*Job, error) {
	var o enqueueOptions
	for _, opt := range opts {
		opt(&o)
	}

	job, err := c.build(def, payload)
	if err != nil {
		return nil, err
	}

	err = c.submit(ctx, job, o)
	metrics.JobsEnqueued.WithLabelValues(string(def.Kind), enqueueOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (c *Client) build(def Definition, payload any) (*Job, error) {
	job := &Job{
		ID:          uuid.New().String(),
		Kind:        def.Kind,
		Queue:       def.Queue,
		MaxAttempts: max(def.MaxAttempts, 1),
		EnqueuedAt:  c.now().UTC(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", def.Kind, err)
		}
		job.Payload = raw
	}

	return job, nil
}

func (c *Client) submit(ctx context.Context, job *Job, o enqueueOptions) error {
	if o.uniqueKey != "" {
		ok, err := c.broker.ClaimUnique(ctx, o.uniqueKey, o.uniqueTTL)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("enqueue %s %q: %w", job.Kind, o.uniqueKey, ErrDuplicateJob)
		}
	}

	var err error
	if o.delay > 0 {
		err = c.broker.PushDelayed(ctx, job, c.now().Add(o.delay))
	} else {
		err = c.broker.Push(ctx, job)
	}

	// Claim and push are separate calls; a failed push must not hold the
	// key, or the next attempt is rejected as a duplicate.
	if err != nil && o.uniqueKey != "" {
		if relErr := c.broker.ReleaseUnique(context.WithoutCancel(ctx), o.uniqueKey); relErr != nil {
			return errors.Join(err, relErr)
		}
	}
	return err
}

func enqueueOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateJob):
		return "duplicate"
	case errors.Is(err, ErrTransportUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
