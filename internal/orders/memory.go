package orders

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepo is a process-local Repository. Returned values are copies.
type MemRepo struct {
	mu     sync.RWMutex
	orders map[string]Order
	skus   map[string]SKU
}

var _ Repository = (*MemRepo)(nil)

func NewMemRepo() *MemRepo {
	return &MemRepo{orders: map[string]Order{}, skus: map[string]SKU{}}
}

func (m *MemRepo) CreateOrder(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *MemRepo) BulkInsertSKUs(_ context.Context, drafts []SKUDraft, orderID string) ([]SKU, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	out := make([]SKU, 0, len(drafts))
	for _, d := range drafts {
		s := SKU{
			ID:            uuid.NewString(),
			OrderID:       orderID,
			SNO:           d.SNO,
			ProductName:   d.ProductName,
			InputImageURL: append([]string(nil), d.InputImageURL...),
			RequestID:     d.RequestID,
			CreatedAt:     now,
		}
		m.skus[s.ID] = s
		out = append(out, s)
	}
	return out, nil
}

func (m *MemRepo) UpdateOrder(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if !slices.Contains(AllowedFrom(o.Status), string(cur.Status)) {
		return fmt.Errorf("%w: %w", ErrStatusConflict, &TransitionError{OrderID: o.ID, From: cur.Status, To: o.Status})
	}
	o.UpdatedAt = time.Now().UTC()
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *MemRepo) FindOrder(_ context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (m *MemRepo) FindOrderWithSKUs(ctx context.Context, orderID string) (*Order, []SKU, error) {
	o, err := m.FindOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var skus []SKU
	for _, id := range o.SKUIDs {
		if s, ok := m.skus[id]; ok {
			skus = append(skus, s)
		}
	}
	return o, skus, nil
}

func cloneOrder(o Order) Order {
	o.SKUIDs = append([]string(nil), o.SKUIDs...)
	return o
}
