package orders

import "fmt"

// StatusView is what the status query returns for one order.
type StatusView struct {
	OrderID       string `json:"orderId"`
	Status        Status `json:"status"`
	ResultFileURL string `json:"resultFileUrl,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// ViewOf exposes resultFileUrl only once completed and errorMessage only once failed.
func ViewOf(o *Order) StatusView {
	v := StatusView{OrderID: o.ID, Status: o.Status}
	switch o.Status {
	case StatusCompleted:
		v.ResultFileURL = o.ResultFileURL
	case StatusFailed:
		v.ErrorMessage = o.ErrorMessage
	}
	return v
}

// CompletionNotification is the body POSTed to an order's webhook.
type CompletionNotification struct {
	Message       string `json:"message"`
	Status        string `json:"status"` // always "success"
	ResultFileURL string `json:"resultFileUrl"`
}

func NewCompletionNotification(o *Order) CompletionNotification {
	return CompletionNotification{
		Message:       fmt.Sprintf("Image processing completed for order %s.", o.ID),
		Status:        "success",
		ResultFileURL: o.ResultFileURL,
	}
}
