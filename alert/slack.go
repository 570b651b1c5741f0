package alert

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/ftahirops/queryguard/model"
)

// SlackChannel is an AlertChannel implementation posting to a Slack
// incoming webhook through the slack-go client.
type SlackChannel struct {
	WebhookURL string
	Enabled    bool
}

// NewSlackChannel returns a Slack AlertChannel; Enabled should reflect
// the operator's per-channel configuration toggle.
func NewSlackChannel(webhookURL string, enabled bool) *SlackChannel {
	return &SlackChannel{WebhookURL: webhookURL, Enabled: enabled}
}

func (s *SlackChannel) Name() string    { return "slack" }
func (s *SlackChannel) IsEnabled() bool { return s.Enabled && s.WebhookURL != "" }

func (s *SlackChannel) SendRegressionAlerts(events []model.RegressionEvent) error {
	var lines []string
	for _, evt := range events {
		lines = append(lines, fmt.Sprintf("*%s* regression on `%s` (%s): %s %.0f%% over baseline, severity *%s*",
			evt.Type, evt.Target.Key(), evt.FingerprintID, evt.MetricName, evt.ChangePercent, evt.Severity))
	}
	return s.post(strings.Join(lines, "\n"))
}

func (s *SlackChannel) SendHotspotSummary(hotspots []model.Hotspot) error {
	var lines []string
	lines = append(lines, "*Top hotspots*")
	for _, h := range hotspots {
		lines = append(lines, fmt.Sprintf("%d. `%s` on %s — %.1f%% of total %s", h.Rank, h.FingerprintID, h.Target.Key(), h.PercentageOfTotal*100, h.MetricType))
	}
	return s.post(strings.Join(lines, "\n"))
}

func (s *SlackChannel) SendDailySummary(summary DailySummary) error {
	text := fmt.Sprintf("*Daily summary* %s – %s: new=%d ack=%d resolved=%d, remediations executed=%d refused=%d",
		summary.WindowStartUTC.Format("2006-01-02"), summary.WindowEndUTC.Format("2006-01-02"),
		summary.NewCount, summary.AcknowledgedCount, summary.ResolvedCount,
		summary.RemediationsExecuted, summary.RemediationsRefused)
	return s.post(text)
}

func (s *SlackChannel) TestConnection() error {
	return s.post("queryguard: channel test connection OK")
}

func (s *SlackChannel) post(text string) error {
	return slack.PostWebhook(s.WebhookURL, &slack.WebhookMessage{Text: text})
}
