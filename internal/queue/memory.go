package queue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Memory is an in-process queue: a bounded channel drained by a fixed pool of goroutines.
// Jobs still buffered when the process exits are lost.
type Memory struct {
	ch          chan Job
	concurrency int
	policy      RetryPolicy
	deadLetter  DeadLetterFunc
	log         logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

type MemoryOption func(*Memory)

func WithBuffer(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.ch = make(chan Job, n)
		}
	}
}

func WithConcurrency(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func WithRetryPolicy(p RetryPolicy) MemoryOption {
	return func(m *Memory) { m.policy = p }
}

func WithDeadLetter(dl DeadLetterFunc) MemoryOption {
	return func(m *Memory) { m.deadLetter = dl }
}

func NewMemory(log logrus.FieldLogger, opts ...MemoryOption) *Memory {
	m := &Memory{
		ch:          make(chan Job, 256),
		concurrency: 4,
		policy:      DefaultRetryPolicy(),
		log:         log,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var (
	_ Enqueuer = (*Memory)(nil)
	_ Consumer = (*Memory)(nil)
)

// Enqueue blocks while the buffer is full, applying backpressure to the caller.
func (m *Memory) Enqueue(ctx context.Context, orderID string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Job{}, ErrClosed
	}
	job := NewJob(orderID)
	select {
	case m.ch <- job:
		m.log.WithFields(logrus.Fields{"job_id": job.ID, "order_id": orderID}).Info("job queued")
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// SetDeadLetter replaces the dead-letter hook. Must be called before Consume.
func (m *Memory) SetDeadLetter(dl DeadLetterFunc) { m.deadLetter = dl }

// Consume runs the worker pool until ctx is cancelled, then waits for in-flight jobs.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < m.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.ch:
					if !ok {
						return
					}
					if err := Deliver(ctx, job, h, m.policy, m.deadLetter, m.log.WithField("worker_id", workerID)); err != nil {
						m.log.WithField("job_id", job.ID).Warn("job abandoned on shutdown")
					}
				}
			}
		}(i + 1)
	}
	wg.Wait()
	return nil
}

// Close stops accepting jobs. Workers drain what is buffered and exit.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
