package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// WebhookChannel posts JSON event payloads to a generic HTTP webhook.
type WebhookChannel struct {
	URL     string
	Enabled bool
	client  *http.Client
}

// NewWebhookChannel returns a webhook AlertChannel with a bounded
// request timeout.
func NewWebhookChannel(webhookURL string, enabled bool) *WebhookChannel {
	return &WebhookChannel{
		URL:     webhookURL,
		Enabled: enabled,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WebhookChannel) Name() string    { return "webhook" }
func (w *WebhookChannel) IsEnabled() bool { return w.Enabled && w.URL != "" }

func (w *WebhookChannel) SendRegressionAlerts(events []model.RegressionEvent) error {
	return w.post("regression_detected", events)
}

func (w *WebhookChannel) SendHotspotSummary(hotspots []model.Hotspot) error {
	return w.post("hotspot_summary", hotspots)
}

func (w *WebhookChannel) SendDailySummary(summary DailySummary) error {
	return w.post("daily_summary", summary)
}

func (w *WebhookChannel) TestConnection() error {
	return w.post("test_connection", map[string]string{"status": "ok"})
}

// post marshals {event, payload, ts} and POSTs it to the configured
// URL, validating the destination first.
func (w *WebhookChannel) post(event string, payload interface{}) error {
	if err := validateWebhookURL(w.URL); err != nil {
		return err
	}
	body := map[string]interface{}{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// validateWebhookURL checks that the webhook URL uses http/https and
// does not target localhost, link-local, or cloud metadata endpoints.
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", scheme)
	}
	host := strings.ToLower(u.Hostname())
	blocked := []string{"169.254.169.254", "metadata.google.internal", "localhost", "127.0.0.1", "::1", "[::1]"}
	for _, b := range blocked {
		if host == b {
			return fmt.Errorf("webhook URL host %q is blocked", host)
		}
	}
	return nil
}
