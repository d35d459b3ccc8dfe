package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     logrus.FieldLogger
}

func NewConsumer(brokers []string, group, topic string, workers int, log logrus.FieldLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log logrus.FieldLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches messages and hands them to a fixed pool of workers. Offsets are committed per
// partition only up to the last message before the oldest one still unfinished, so a crash
// mid-job means that job, and anything fetched after it, is delivered again.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers)
	offsets := newOffsetTracker()
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := c.log.WithField("worker_id", id)
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					log.WithError(err).WithField("offset", m.Offset).Warn("message not committed")
					continue
				}
				c.commit(ctx, offsets, m, log)
			}
		}(i + 1)
	}

	err := c.dispatch(ctx, jobs, offsets)
	close(jobs)
	wg.Wait()
	return err
}

// commit marks m finished and commits its partition as far as the finished prefix reaches.
// Commits for one consumer are serialized so a partition's committed offset never moves back.
func (c *Consumer) commit(ctx context.Context, offsets *offsetTracker, m kafka.Message, log logrus.FieldLogger) {
	offsets.mu.Lock()
	defer offsets.mu.Unlock()

	upTo, ok := offsets.finish(m)
	if !ok {
		return
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.r.CommitMessages(commitCtx, upTo); err != nil {
		log.WithError(err).WithField("offset", upTo.Offset).Error("commit failed")
	}
}

func (c *Consumer) dispatch(ctx context.Context, jobs chan<- kafka.Message, offsets *offsetTracker) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		offsets.track(m)
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

type partitionKey struct {
	topic     string
	partition int
}

// partitionOffsets: inflight is in fetch order; done holds finished messages not yet committed.
type partitionOffsets struct {
	inflight []int64
	done     map[int64]kafka.Message
}

type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: map[partitionKey]*partitionOffsets{}}
}

func (t *offsetTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partitionKey{m.Topic, m.Partition}
	p := t.partitions[k]
	// A rewind (rebalance handing the partition back) starts the bookkeeping over.
	if p == nil || (len(p.inflight) > 0 && m.Offset <= p.inflight[len(p.inflight)-1]) {
		p = &partitionOffsets{done: map[int64]kafka.Message{}}
		t.partitions[k] = p
	}
	p.inflight = append(p.inflight, m.Offset)
}

// finish must be called with t.mu held. It returns the highest message whose offset and every
// offset fetched before it on the same partition have finished.
func (t *offsetTracker) finish(m kafka.Message) (kafka.Message, bool) {
	p := t.partitions[partitionKey{m.Topic, m.Partition}]
	if p == nil {
		return kafka.Message{}, false
	}
	p.done[m.Offset] = m
	var (
		upTo kafka.Message
		ok   bool
	)
	for len(p.inflight) > 0 {
		head, finished := p.done[p.inflight[0]]
		if !finished {
			break
		}
		delete(p.done, head.Offset)
		p.inflight = p.inflight[1:]
		upTo, ok = head, true
	}
	return upTo, ok
}
