package orders

import "time"

type Order struct {
	ID            string
	Status        Status // lihat status.go
	WebhookURL    string
	SKUIDs        []string
	ResultFileURL string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SKU is one accepted row of a submission. Immutable once inserted.
type SKU struct {
	ID            string
	OrderID       string
	SNO           int
	ProductName   string
	InputImageURL []string
	RequestID     string
	CreatedAt     time.Time
}

// SKUDraft is a validated row that has not been persisted yet.
type SKUDraft struct {
	SNO           int      `validate:"gte=1"`
	ProductName   string   `validate:"required"`
	InputImageURL []string `validate:"min=1,dive,required"`
	RequestID     string   `validate:"required"`
}

// Transition moves the order to next, enforcing the state machine.
func (o *Order) Transition(next Status) error {
	if !CanTransition(o.Status, next) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: next}
	}
	o.Status = next
	return nil
}

// Complete marks the order completed with the manifest location.
func (o *Order) Complete(resultFileURL string) error {
	if err := o.Transition(StatusCompleted); err != nil {
		return err
	}
	o.ResultFileURL = resultFileURL
	return nil
}

// Fail marks the order failed with a reason.
func (o *Order) Fail(reason string) error {
	if err := o.Transition(StatusFailed); err != nil {
		return err
	}
	o.ErrorMessage = reason
	return nil
}
