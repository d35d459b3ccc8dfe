package orders

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
	"github.com/ariefcatur/go-image-orders/internal/queue"
)

// Submitter persists a validated submission and schedules it for processing.
type Submitter struct {
	repo     Repository
	queue    queue.Enqueuer
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewSubmitter(repo Repository, q queue.Enqueuer, log logrus.FieldLogger) *Submitter {
	return &Submitter{repo: repo, queue: q, validate: validator.New(), log: log}
}

// Submit creates the order, bulk-inserts its SKUs, links them and enqueues {orderId}.
// A failure after the order row exists leaves it pending with no SKUs linked.
func (s *Submitter) Submit(ctx context.Context, drafts []SKUDraft, webhookURL string) (string, error) {
	if err := s.validate.Var(webhookURL, "omitempty,http_url"); err != nil {
		return "", apperr.Validation(apperr.CodeInvalidWebhookURL, "Webhook URL must be an absolute http(s) URL", err)
	}

	o := &Order{Status: StatusPending, WebhookURL: webhookURL}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return "", err
	}
	log := s.log.WithField("order_id", o.ID)

	skus, err := s.repo.BulkInsertSKUs(ctx, drafts, o.ID)
	if err != nil {
		log.WithError(err).Error("bulk insert skus")
		return "", fmt.Errorf("%w: %v", ErrSKUsNotSaved, err)
	}
	if len(skus) == 0 {
		return "", ErrSKUsNotSaved
	}

	o.SKUIDs = make([]string, len(skus))
	for i, sku := range skus {
		o.SKUIDs[i] = sku.ID
	}
	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return "", fmt.Errorf("link skus to order %s: %w", o.ID, err)
	}

	job, err := s.queue.Enqueue(ctx, o.ID)
	if err != nil {
		return "", fmt.Errorf("enqueue order %s: %w", o.ID, err)
	}
	log.WithFields(logrus.Fields{"job_id": job.ID, "skus": len(skus)}).Info("order submitted")
	return o.ID, nil
}
