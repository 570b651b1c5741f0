package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ftahirops/queryguard/model"
)

// EmailChannel sends plain-text alert mail over SMTP.
type EmailChannel struct {
	Host       string
	Port       int
	From       string
	Recipients []string
	Enabled    bool

	// send is swapped in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel returns an SMTP AlertChannel.
func NewEmailChannel(host string, port int, from string, recipients []string, enabled bool) *EmailChannel {
	return &EmailChannel{
		Host:       host,
		Port:       port,
		From:       from,
		Recipients: recipients,
		Enabled:    enabled,
		send:       smtp.SendMail,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) IsEnabled() bool {
	return e.Enabled && e.Host != "" && len(e.Recipients) > 0
}

func (e *EmailChannel) SendRegressionAlerts(events []model.RegressionEvent) error {
	var b strings.Builder
	for _, evt := range events {
		fmt.Fprintf(&b, "[%s] %s regression on %s (fingerprint %s)\n  %s: %.1f -> %.1f (+%.0f%%)\n",
			evt.Severity, evt.Type, evt.Target.Key(), evt.FingerprintID,
			evt.MetricName, evt.BaselineValue, evt.CurrentValue, evt.ChangePercent)
		if evt.IsPlanChange {
			b.WriteString("  execution plan changed from baseline\n")
		}
	}
	subject := fmt.Sprintf("queryguard: %d regression(s) detected", len(events))
	return e.mail(subject, b.String())
}

func (e *EmailChannel) SendHotspotSummary(hotspots []model.Hotspot) error {
	var b strings.Builder
	for _, h := range hotspots {
		fmt.Fprintf(&b, "%2d. %s on %s — %.1f%% of total %s (%d executions)\n",
			h.Rank, h.FingerprintID, h.Target.Key(), h.PercentageOfTotal*100, h.MetricType, h.ExecCount)
	}
	return e.mail("queryguard: hotspot summary", b.String())
}

func (e *EmailChannel) SendDailySummary(summary DailySummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Window %s to %s\n\n", summary.WindowStartUTC.Format("2006-01-02 15:04"), summary.WindowEndUTC.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Events: %d new, %d acknowledged, %d resolved\n", summary.NewCount, summary.AcknowledgedCount, summary.ResolvedCount)
	for sev := model.SeverityCritical; sev >= model.SeverityLow; sev-- {
		if n := summary.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", sev, n)
		}
	}
	fmt.Fprintf(&b, "Remediations: %d executed, %d refused\n", summary.RemediationsExecuted, summary.RemediationsRefused)
	if len(summary.TopHotspots) > 0 {
		b.WriteString("\nTop hotspots:\n")
		for _, h := range summary.TopHotspots {
			fmt.Fprintf(&b, "%2d. %s on %s — %.1f%% of total %s\n",
				h.Rank, h.FingerprintID, h.Target.Key(), h.PercentageOfTotal*100, h.MetricType)
		}
	}
	return e.mail("queryguard: daily summary", b.String())
}

func (e *EmailChannel) TestConnection() error {
	return e.mail("queryguard: channel test", "channel test connection OK\n")
}

func (e *EmailChannel) mail(subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.From, strings.Join(e.Recipients, ", "), subject, body)
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	return e.send(addr, nil, e.From, e.Recipients, []byte(msg))
}
