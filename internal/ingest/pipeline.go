// Package ingest validates an uploaded spreadsheet and turns it into SKU drafts.
package ingest

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/observability"
	"github.com/ariefcatur/go-image-orders/internal/orders"
)

type Result struct {
	RequestID string
	Drafts    []orders.SKUDraft
}

type Pipeline struct {
	uploadDir   string
	transformer *Transformer
	metrics     *observability.Metrics
	log         logrus.FieldLogger
}

// NewPipeline spools uploads under uploadDir ("" means the OS temp dir).
func NewPipeline(uploadDir string, m *observability.Metrics, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		uploadDir:   uploadDir,
		transformer: NewTransformer(log),
		metrics:     m,
		log:         log,
	}
}

// Ingest runs upload checks, spooling, parsing and row transformation. The spooled file is
// gone when Ingest returns, whatever the outcome.
func (p *Pipeline) Ingest(ctx context.Context, form *multipart.Form) (Result, error) {
	fh, kind, err := CheckUpload(form)
	if err != nil {
		return Result{}, err
	}

	art, err := Spool(fh, p.uploadDir)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := art.Remove(); err != nil {
			p.log.WithError(err).WithField("path", art.Path).Error("failed to delete upload artifact")
		}
	}()

	f, err := os.Open(art.Path)
	if err != nil {
		return Result{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	records, err := Parse(f, kind)
	if err != nil {
		return Result{}, err
	}

	requestID := uuid.NewString()
	drafts, dropped, err := p.transformer.Transform(records, requestID)
	p.metrics.RowsIngested(ctx, len(drafts), dropped)
	if err != nil {
		return Result{}, err
	}

	p.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"file":       fh.Filename,
		"kept":       len(drafts),
		"dropped":    dropped,
	}).Info("upload ingested")
	return Result{RequestID: requestID, Drafts: drafts}, nil
}
