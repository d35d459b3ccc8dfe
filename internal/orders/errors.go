package orders

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrSKUsNotSaved  = errors.New("skus not saved")
	// ErrStatusConflict: the stored status moved on since the order was loaded.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
