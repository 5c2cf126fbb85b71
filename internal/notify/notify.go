package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier posts short status messages to a webhook. A Notifier with no URL
// discards everything.
type Notifier struct {
	url  string
	http *http.Client
}

// New creates a Notifier for the given webhook URL.
func New(url string) *Notifier {
	return &Notifier{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a message. Errors are returned, not retried; a missed
// notification never blocks the ledger.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("posting notification: http %d", resp.StatusCode)
	}
	return nil
}
