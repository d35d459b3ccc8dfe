package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/orders"
	"github.com/ariefcatur/go-image-orders/internal/queue"
)

type JobQueueConfig struct {
	Brokers     []string
	Topic       string
	DLQTopic    string
	Group       string
	Concurrency int
	Retry       queue.RetryPolicy
}

// JobQueue is the kafka backend of queue.Enqueuer and queue.Consumer.
// Retries happen in-process on the worker holding the message; a worker restart resets the
// attempt count because the uncommitted message is fetched again from scratch.
type JobQueue struct {
	cfg        JobQueueConfig
	producer   *Producer
	dlq        *Producer
	deadLetter queue.DeadLetterFunc
	log        logrus.FieldLogger

	newConsumer func() *Consumer
}

var (
	_ queue.Enqueuer = (*JobQueue)(nil)
	_ queue.Consumer = (*JobQueue)(nil)
)

func NewJobQueue(cfg JobQueueConfig, log logrus.FieldLogger) *JobQueue {
	if cfg.Topic == "" {
		cfg.Topic = orders.TopicImageJobs
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = cfg.Topic + ".dlq"
	}
	q := &JobQueue{
		cfg:      cfg,
		producer: NewProducer(cfg.Brokers, cfg.Topic),
		dlq:      NewProducer(cfg.Brokers, cfg.DLQTopic),
		log:      log.WithField("topic", cfg.Topic),
	}
	// The reader joins the consumer group as soon as it is created, so API processes that
	// only enqueue never build one.
	q.newConsumer = func() *Consumer {
		return NewConsumer(cfg.Brokers, cfg.Group, cfg.Topic, cfg.Concurrency, q.log)
	}
	return q
}

// SetDeadLetter registers the hook run before a job is published to the DLQ topic.
func (q *JobQueue) SetDeadLetter(dl queue.DeadLetterFunc) { q.deadLetter = dl }

func (q *JobQueue) Enqueue(ctx context.Context, orderID string) (queue.Job, error) {
	job := queue.NewJob(orderID)
	b, err := EncodeJob(job)
	if err != nil {
		return queue.Job{}, err
	}
	if err := q.producer.Publish(ctx, orders.PartitionKey(orderID), b); err != nil {
		return queue.Job{}, err
	}
	q.log.WithFields(logrus.Fields{"job_id": job.ID, "order_id": orderID}).Info("job queued")
	return job, nil
}

func (q *JobQueue) Consume(ctx context.Context, h queue.Handler) error {
	return q.newConsumer().Start(ctx, func(ctx context.Context, m kafka.Message) error {
		job, err := DecodeJob(m.Value)
		if err != nil {
			// Poison message: committing it is the only way past it.
			q.log.WithError(err).WithField("offset", m.Offset).Error("dropping undecodable job")
			return nil
		}
		return queue.Deliver(ctx, job, h, q.cfg.Retry, q.publishDeadLetter, q.log)
	})
}

func (q *JobQueue) publishDeadLetter(ctx context.Context, d queue.Delivery, cause error) {
	if q.deadLetter != nil {
		q.deadLetter(ctx, d, cause)
	}
	b, err := EncodeJob(d.Job)
	if err != nil {
		q.log.WithError(err).Error("encode dead-lettered job")
		return
	}
	err = q.dlq.Publish(ctx, orders.PartitionKey(d.Job.OrderID), b,
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	if err != nil {
		q.log.WithError(err).WithField("job_id", d.Job.ID).Error("publish to dlq failed")
	}
}

func (q *JobQueue) Close() error {
	err := q.producer.Close()
	if dErr := q.dlq.Close(); err == nil {
		err = dErr
	}
	return err
}
