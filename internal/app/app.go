// Package app wires the pieces shared by the api and worker binaries.
package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/config"
	kafkax "github.com/ariefcatur/go-image-orders/internal/kafka"
	"github.com/ariefcatur/go-image-orders/internal/observability"
	"github.com/ariefcatur/go-image-orders/internal/orders"
	"github.com/ariefcatur/go-image-orders/internal/processor"
	"github.com/ariefcatur/go-image-orders/internal/queue"
	"github.com/ariefcatur/go-image-orders/internal/redisx"
	"github.com/ariefcatur/go-image-orders/internal/storage"
)

// JobQueue is what both queue backends offer.
type JobQueue interface {
	queue.Enqueuer
	queue.Consumer
	SetDeadLetter(dl queue.DeadLetterFunc)
}

// NewJobQueue picks the backend named by cfg.QueueBackend. closeFn flushes and releases it.
func NewJobQueue(cfg config.Config, log logrus.FieldLogger) (q JobQueue, closeFn func()) {
	policy := queue.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		MaxBackoff:  cfg.RetryMaxBackoff,
	}
	if cfg.QueueBackend == config.QueueMemory {
		m := queue.NewMemory(log,
			queue.WithConcurrency(cfg.WorkerConcurrency),
			queue.WithRetryPolicy(policy),
		)
		return m, m.Close
	}
	k := kafkax.NewJobQueue(kafkax.JobQueueConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       orders.TopicImageJobs,
		DLQTopic:    orders.TopicImageJobsDLQ,
		Group:       cfg.KafkaGroup,
		Concurrency: cfg.WorkerConcurrency,
		Retry:       policy,
	}, log)
	return k, func() {
		if err := k.Close(); err != nil {
			log.WithError(err).Warn("kafka writer close")
		}
	}
}

func NewObjectStore(cfg config.Config) storage.ObjectStore {
	if cfg.StorageBackend == config.StorageLocal {
		return &storage.Local{Dir: cfg.LocalStorageDir, BaseURL: cfg.LocalBaseURL}
	}
	return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
}

// NewProcessor builds the image job handler. The lease and status invalidation both go
// through rdb.
func NewProcessor(cfg config.Config, repo orders.Repository, rdb redis.UniversalClient, status *orders.Query, m *observability.Metrics, log logrus.FieldLogger) *processor.Service {
	return &processor.Service{
		Repo:        repo,
		Store:       NewObjectStore(cfg),
		Fetcher:     processor.NewFetcher(cfg.FetchTimeout, cfg.MaxImageBytes),
		Notifier:    processor.NewNotifier(cfg.WebhookTimeout),
		Lease:       redisx.NewLeaser(rdb, redisx.TTLOrderLease),
		Status:      status,
		Metrics:     m,
		Log:         log.WithField("component", "processor"),
		TempDir:     cfg.TempDir,
		JPEGQuality: cfg.JPEGQuality,
	}
}

// StartWorker registers the dead-letter hook and consumes until ctx ends.
func StartWorker(ctx context.Context, q JobQueue, svc *processor.Service) error {
	q.SetDeadLetter(svc.DeadLetter)
	return q.Consume(ctx, svc.HandleJob)
}
