package redisx

import (
	"fmt"
	"time"
)

const (
	// Cache status order: order_status:{order_id} -> {"orderId": "...", "status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Lease processing per order: lease:order:{order_id} -> {job_id}:{attempt}
	KeyOrderLease = "lease:order:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	// Pending / in_progress views go stale quickly; keep them short.
	TTLStatusCacheActive = 5 * time.Second
	TTLOrderLease        = 10 * time.Minute
)

func OrderStatusKey(orderID string) string { return fmt.Sprintf(KeyOrderStatus, orderID) }
func OrderLeaseKey(orderID string) string  { return fmt.Sprintf(KeyOrderLease, orderID) }
