package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the persistence capability the ingest and worker paths depend on.
type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	BulkInsertSKUs(ctx context.Context, drafts []SKUDraft, orderID string) ([]SKU, error)
	UpdateOrder(ctx context.Context, o *Order) error
	FindOrder(ctx context.Context, orderID string) (*Order, error)
	FindOrderWithSKUs(ctx context.Context, orderID string) (*Order, []SKU, error)
}

// DB is the subset of *pgxpool.Pool used by Repo.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Repo struct{ DB DB }

var _ Repository = (*Repo)(nil)

const orderColumns = `id, status, COALESCE(webhook_url, ''), sku_ids, COALESCE(result_file_url, ''),
	COALESCE(error_message, ''), created_at, updated_at`

// CreateOrder inserts o as a new pending order and fills in ID and timestamps.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, status, webhook_url)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING created_at, updated_at`,
		o.ID, string(o.Status), o.WebhookURL,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// BulkInsertSKUs writes all drafts for an order with a single COPY.
func (r *Repo) BulkInsertSKUs(ctx context.Context, drafts []SKUDraft, orderID string) ([]SKU, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	skus := make([]SKU, 0, len(drafts))
	rows := make([][]any, 0, len(drafts))
	for _, d := range drafts {
		s := SKU{
			ID:            uuid.NewString(),
			OrderID:       orderID,
			SNO:           d.SNO,
			ProductName:   d.ProductName,
			InputImageURL: d.InputImageURL,
			RequestID:     d.RequestID,
			CreatedAt:     now,
		}
		skus = append(skus, s)
		rows = append(rows, []any{s.ID, s.OrderID, s.SNO, s.ProductName, s.InputImageURL, s.RequestID, s.CreatedAt})
	}

	n, err := r.DB.CopyFrom(ctx,
		pgx.Identifier{"skus"},
		[]string{"id", "order_id", "sno", "product_name", "input_image_urls", "request_id", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("copy skus: %w", err)
	}
	if n != int64(len(skus)) {
		return nil, fmt.Errorf("copy skus: wrote %d of %d rows", n, len(skus))
	}
	return skus, nil
}

// UpdateOrder persists the mutable fields of o. The write only lands if the stored status
// may legally move to o.Status; otherwise ErrStatusConflict is returned and nothing changes.
func (r *Repo) UpdateOrder(ctx context.Context, o *Order) error {
	skuIDs := o.SKUIDs
	if skuIDs == nil {
		skuIDs = []string{}
	}
	err := r.DB.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, sku_ids = $3, result_file_url = NULLIF($4, ''),
		    error_message = NULLIF($5, ''), updated_at = now()
		WHERE id = $1 AND status = ANY($6)
		RETURNING updated_at`,
		o.ID, string(o.Status), skuIDs, o.ResultFileURL, o.ErrorMessage, AllowedFrom(o.Status),
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.updateMiss(ctx, o)
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	return nil
}

// updateMiss tells a missing order apart from one whose status moved on.
func (r *Repo) updateMiss(ctx context.Context, o *Order) error {
	var cur string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, o.ID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("select order status %s: %w", o.ID, err)
	}
	return fmt.Errorf("%w: %w", ErrStatusConflict, &TransitionError{OrderID: o.ID, From: Status(cur), To: o.Status})
}

func (r *Repo) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &status, &o.WebhookURL, &o.SKUIDs, &o.ResultFileURL, &o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order %s: %w", orderID, err)
	}
	o.Status = Status(status)
	return &o, nil
}

// FindOrderWithSKUs loads the order and its linked SKUs in the order they were linked.
func (r *Repo) FindOrderWithSKUs(ctx context.Context, orderID string) (*Order, []SKU, error) {
	o, err := r.FindOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if len(o.SKUIDs) == 0 {
		return o, nil, nil
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, sno, product_name, input_image_urls, request_id, created_at
		FROM skus WHERE id = ANY($1)`, o.SKUIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("select skus for order %s: %w", orderID, err)
	}
	defer rows.Close()

	byID := make(map[string]SKU, len(o.SKUIDs))
	for rows.Next() {
		var s SKU
		if err := rows.Scan(&s.ID, &s.OrderID, &s.SNO, &s.ProductName, &s.InputImageURL, &s.RequestID, &s.CreatedAt); err != nil {
			return nil, nil, err
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	skus := make([]SKU, 0, len(byID))
	for _, id := range o.SKUIDs {
		if s, ok := byID[id]; ok {
			skus = append(skus, s)
		}
	}
	return o, skus, nil
}
