package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-image-orders/internal/orders"
)

var ErrWebhookDelivery = errors.New("webhook delivery failed")

// Notifier POSTs completion notifications. One attempt, no retry.
type Notifier struct {
	Client *http.Client
}

func NewNotifier(timeout time.Duration) *Notifier {
	return &Notifier{Client: &http.Client{Timeout: timeout}}
}

func (n *Notifier) Notify(ctx context.Context, url string, body orders.CompletionNotification) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookDelivery, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWebhookDelivery, resp.StatusCode)
	}
	return nil
}
