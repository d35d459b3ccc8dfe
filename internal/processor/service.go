// Package processor is the worker side of an order: it recompresses every referenced image,
// publishes a manifest of the results and notifies the order's webhook.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/observability"
	"github.com/ariefcatur/go-image-orders/internal/orders"
	"github.com/ariefcatur/go-image-orders/internal/queue"
	"github.com/ariefcatur/go-image-orders/internal/redisx"
	"github.com/ariefcatur/go-image-orders/internal/storage"
)

type Lease interface {
	Acquire(ctx context.Context, orderID, token string) error
	Release(ctx context.Context, orderID, token string) error
}

type StatusCache interface {
	Invalidate(ctx context.Context, orderID string)
}

const DefaultJPEGQuality = 50

type Service struct {
	Repo     orders.Repository
	Store    storage.ObjectStore
	Fetcher  *Fetcher
	Notifier *Notifier
	Lease    Lease       // optional
	Status   StatusCache // optional
	Metrics  *observability.Metrics
	Log      logrus.FieldLogger

	TempDir     string // "" means the OS temp dir
	JPEGQuality int
}

// HandleJob: dipasang sebagai handler consumer. A non-nil error sends the job back to the
// queue's retry policy; per-image failures never do.
func (s *Service) HandleJob(ctx context.Context, d queue.Delivery) error {
	orderID := d.Job.OrderID
	log := s.Log.WithFields(logrus.Fields{"job_id": d.Job.ID, "order_id": orderID, "attempt": d.Attempt})

	err := s.handle(ctx, d, log)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrBusy):
		log.WithError(err).Info("order claimed by another worker")
	case ctx.Err() != nil:
		log.WithError(err).Warn("job interrupted")
	default:
		s.Metrics.JobHandled(ctx, observability.OutcomeRetry)
	}
	return err
}

func (s *Service) handle(ctx context.Context, d queue.Delivery, log logrus.FieldLogger) error {
	orderID := d.Job.OrderID

	// 1) claim order
	if s.Lease != nil {
		token := fmt.Sprintf("%s:%d", d.Job.ID, d.Attempt)
		if err := s.Lease.Acquire(ctx, orderID, token); err != nil {
			if errors.Is(err, redisx.ErrLeaseHeld) {
				return fmt.Errorf("claim order %s: %w: %w", orderID, queue.ErrBusy, err)
			}
			return fmt.Errorf("claim order %s: %w", orderID, err)
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.Lease.Release(relCtx, orderID, token); err != nil {
				log.WithError(err).Warn("lease release failed")
			}
		}()
	}

	// 2) load
	o, skus, err := s.Repo.FindOrderWithSKUs(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if o.Status.Terminal() {
		// duplicate delivery of a finished order
		log.WithField("status", o.Status).Info("order already finished, skipping")
		s.Metrics.JobHandled(ctx, observability.OutcomeDuplicate)
		return nil
	}

	// 3) in_progress
	if err := o.Transition(orders.StatusInProgress); err != nil {
		return err
	}
	if err := s.Repo.UpdateOrder(ctx, o); err != nil {
		if errors.Is(err, orders.ErrStatusConflict) {
			return s.finishedElsewhere(ctx, log, err)
		}
		return fmt.Errorf("mark order in_progress: %w", err)
	}
	s.invalidate(ctx, orderID)

	dir, err := os.MkdirTemp(s.TempDir, fmt.Sprintf("order-%s-attempt-%d-*", orderID, d.Attempt))
	if err != nil {
		return fmt.Errorf("job temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warn("failed to remove job temp dir")
		}
	}()

	// 4) per image, sequential
	results := s.processImages(ctx, dir, skus, log)
	if err := ctx.Err(); err != nil {
		return err
	}
	records := Successful(results)

	// 5) manifest
	manifestURL, err := s.publishManifest(ctx, dir, orderID, records)
	if err != nil {
		return err
	}

	// 6) completed
	if err := o.Complete(manifestURL); err != nil {
		return err
	}
	if err := s.Repo.UpdateOrder(ctx, o); err != nil {
		if errors.Is(err, orders.ErrStatusConflict) {
			return s.finishedElsewhere(ctx, log, err)
		}
		return fmt.Errorf("mark order completed: %w", err)
	}
	s.invalidate(ctx, orderID)
	log.WithFields(logrus.Fields{
		"images_ok":     len(records),
		"images_failed": len(results) - len(records),
		"result_url":    manifestURL,
	}).Info("order completed")
	s.Metrics.JobHandled(ctx, observability.OutcomeSuccess)

	// 7) webhook, fire-and-forget
	if o.WebhookURL != "" && s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, o.WebhookURL, orders.NewCompletionNotification(o)); err != nil {
			log.WithError(err).Warn("webhook delivery failed")
		}
	}
	return nil
}

// finishedElsewhere acks a job whose order reached a terminal status behind its back.
// The stored status wins.
func (s *Service) finishedElsewhere(ctx context.Context, log logrus.FieldLogger, err error) error {
	log.WithError(err).Warn("order finished elsewhere, dropping this run")
	s.Metrics.JobHandled(ctx, observability.OutcomeDuplicate)
	return nil
}

func (s *Service) processImages(ctx context.Context, dir string, skus []orders.SKU, log logrus.FieldLogger) []Result {
	var results []Result
	for _, sku := range skus {
		for _, rawURL := range sku.InputImageURL {
			if ctx.Err() != nil {
				return results
			}
			rec, err := s.processImage(ctx, dir, sku, rawURL)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"sno": sku.SNO, "url": rawURL}).Warn("image skipped")
				s.Metrics.ImageProcessed(ctx, observability.OutcomeFailed)
			} else {
				s.Metrics.ImageProcessed(ctx, observability.OutcomeSuccess)
			}
			results = append(results, Result{Record: rec, Err: err})
		}
	}
	return results
}

// processImage removes every local file it creates before returning.
func (s *Service) processImage(ctx context.Context, dir string, sku orders.SKU, rawURL string) (Record, error) {
	ext := ExtensionOf(rawURL)
	local, err := s.Fetcher.Fetch(ctx, rawURL, dir, ext)
	if err != nil {
		return Record{}, err
	}
	defer os.Remove(local)

	out := local
	if Recompressible(ext) {
		q := s.JPEGQuality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		out, err = Recompress(local, q)
		if err != nil {
			return Record{}, err
		}
		defer os.Remove(out)
	}

	outputURL, err := s.Store.Upload(ctx, out, storage.NamespaceImages)
	if err != nil {
		return Record{}, fmt.Errorf("upload image: %w", err)
	}
	return Record{
		SNO:            sku.SNO,
		ProductName:    sku.ProductName,
		InputImageURL:  rawURL,
		OutputImageURL: outputURL,
	}, nil
}

func (s *Service) publishManifest(ctx context.Context, dir, orderID string, records []Record) (string, error) {
	p, err := WriteManifest(dir, orderID, records)
	if err != nil {
		return "", err
	}
	defer os.Remove(p)

	u, err := s.Store.Upload(ctx, p, storage.NamespaceCSV)
	if err != nil {
		return "", fmt.Errorf("upload manifest: %w", err)
	}
	return u, nil
}

// DeadLetter marks the order failed once its job has exhausted retries.
func (s *Service) DeadLetter(ctx context.Context, d queue.Delivery, cause error) {
	orderID := d.Job.OrderID
	log := s.Log.WithFields(logrus.Fields{"job_id": d.Job.ID, "order_id": orderID, "attempt": d.Attempt})
	s.Metrics.JobHandled(ctx, observability.OutcomeDeadLetter)

	o, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		log.WithError(err).Error("dead letter: cannot load order")
		return
	}
	if o.Status.Terminal() {
		return
	}
	if err := o.Fail(cause.Error()); err != nil {
		log.WithError(err).Error("dead letter: cannot fail order")
		return
	}
	if err := s.Repo.UpdateOrder(ctx, o); err != nil {
		if errors.Is(err, orders.ErrStatusConflict) {
			log.WithError(err).Info("dead letter: order already finished")
			return
		}
		log.WithError(err).Error("dead letter: cannot persist failed order")
		return
	}
	s.invalidate(ctx, orderID)
	log.WithField("cause", cause.Error()).Error("order failed")
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if s.Status != nil {
		s.Status.Invalidate(ctx, orderID)
	}
}
