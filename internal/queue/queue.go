// Package queue carries image-processing jobs from the API to the workers.
//
// A job references an order by id only; the worker reloads everything else from the store.
// Delivery is at-least-once: a handler error is retried with exponential backoff, and once
// the attempts are exhausted the dead-letter hook runs and the job is acknowledged.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("queue closed")

// ErrBusy marks a handler error meaning the job cannot start yet because another worker holds
// it. Deliver waits and tries again without spending an attempt.
var ErrBusy = errors.New("job busy elsewhere")

type Job struct {
	ID         string    `json:"jobId"`
	OrderID    string    `json:"orderId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func NewJob(orderID string) Job {
	return Job{ID: uuid.NewString(), OrderID: orderID, EnqueuedAt: time.Now().UTC()}
}

// Delivery is one attempt at running a job. Attempt starts at 1.
type Delivery struct {
	Job     Job
	Attempt int
}

// Handler must return nil only when the job is done and may be acknowledged.
type Handler func(ctx context.Context, d Delivery) error

// DeadLetterFunc is called once per job whose attempts are exhausted.
type DeadLetterFunc func(ctx context.Context, d Delivery, cause error)

type Enqueuer interface {
	Enqueue(ctx context.Context, orderID string) (Job, error)
}

type Consumer interface {
	// Consume blocks until ctx is cancelled or the backend fails.
	Consume(ctx context.Context, h Handler) error
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	return p
}

// Delay is the wait after the given failed attempt: Backoff * 2^(attempt-1), capped at MaxBackoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// Deliver runs h for job until it succeeds or the policy gives up, in which case dl is called.
// ErrBusy results are retried with backoff but never count toward MaxAttempts.
// The returned error is non-nil only when ctx ended first; the job must then not be acknowledged.
func Deliver(ctx context.Context, job Job, h Handler, policy RetryPolicy, dl DeadLetterFunc, log logrus.FieldLogger) error {
	policy = policy.withDefaults()
	attempt, busy := 1, 0
	for {
		d := Delivery{Job: job, Attempt: attempt}
		err := h(ctx, d)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		entry := log.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"order_id": job.OrderID,
			"attempt":  attempt,
		}).WithError(err)

		var wait time.Duration
		if errors.Is(err, ErrBusy) {
			busy++
			wait = policy.Delay(busy)
			entry.WithField("retry_in", wait.String()).Info("job busy elsewhere, waiting")
		} else {
			if attempt >= policy.MaxAttempts {
				entry.Error("job exhausted retries, dead-lettering")
				if dl != nil {
					dl(ctx, d, err)
				}
				return nil
			}
			wait = policy.Delay(attempt)
			entry.WithField("retry_in", wait.String()).Warn("job failed, retrying")
			attempt++
			busy = 0
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
