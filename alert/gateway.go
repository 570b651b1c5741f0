// Package alert implements the alert gateway: fan-out to enabled
// channels, per-key cooldowns, and per-hour caps.
package alert

import (
	"sync"
	"time"

	"github.com/ftahirops/queryguard/internal/logx"
	"github.com/ftahirops/queryguard/model"
)

var log = logx.New("alert")

// Channel is a single alert destination.
type Channel interface {
	Name() string
	IsEnabled() bool
	SendRegressionAlerts(events []model.RegressionEvent) error
	SendHotspotSummary(hotspots []model.Hotspot) error
	SendDailySummary(summary DailySummary) error
	TestConnection() error
}

// DailySummary is the payload for the scheduled daily-summary job.
type DailySummary struct {
	WindowStartUTC time.Time
	WindowEndUTC   time.Time

	NewCount          int
	AcknowledgedCount int
	ResolvedCount     int
	BySeverity        map[model.Severity]int

	TopHotspots []model.Hotspot

	RemediationsExecuted int
	RemediationsRefused  int
}

// cooldownKey identifies the (channel, fingerprint_id, regression_type)
// tuple the cooldown/rate-cap policy is keyed on.
type cooldownKey struct {
	channel       string
	fingerprintID string
	regType       model.RegressionType
}

// cooldownTracker records the last-sent time per key and the per-hour
// send count per channel; both the in-process map (default) and the
// Redis-backed implementation (redistracker.go) satisfy this.
type cooldownTracker interface {
	// ShouldSuppress reports whether an event for key should be
	// suppressed given the cooldown window, unless severity has
	// increased since the last send for this key.
	ShouldSuppress(key cooldownKey, severity model.Severity, cooldown time.Duration) bool
	// RecordSend marks key as sent at the given severity/time.
	RecordSend(key cooldownKey, severity model.Severity, at time.Time)
	// AllowHourlySend reports whether channel is still under its
	// per-hour cap, incrementing the counter if so.
	AllowHourlySend(channel string, cap int) bool
}

// Stats exposes per-channel counters for the doctor/test-channels
// operator surface.
type Stats struct {
	mu            sync.Mutex
	failures      map[string]int
	rateLimited   map[string]int
	suppressed    map[string]int
}

func newStats() *Stats {
	return &Stats{failures: map[string]int{}, rateLimited: map[string]int{}, suppressed: map[string]int{}}
}

func (s *Stats) incFailure(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[channel]++
}

func (s *Stats) incRateLimited(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited[channel]++
}

func (s *Stats) incSuppressed(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed[channel]++
}

// Failures returns a snapshot of per-channel failure counters.
func (s *Stats) Failures() map[string]int { return s.snapshot(s.failures) }

// RateLimited returns a snapshot of per-channel rate_limited counters.
func (s *Stats) RateLimited() map[string]int { return s.snapshot(s.rateLimited) }

// Suppressed returns a snapshot of per-channel cooldown-suppression counters.
func (s *Stats) Suppressed() map[string]int { return s.snapshot(s.suppressed) }

func (s *Stats) snapshot(m map[string]int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GatewayConfig holds the cooldown/rate-cap policy.
type GatewayConfig struct {
	CooldownMinutes  int // default 15
	MaxAlertsPerHour int // default 10
}

// Gateway is the Alert Gateway.
type Gateway struct {
	Channels []Channel
	Config   GatewayConfig
	tracker  cooldownTracker
	Stats    *Stats
}

// NewGateway returns a Gateway backed by the default in-process
// cooldown tracker, guarded by a short-critical-section lock.
func NewGateway(channels []Channel, cfg GatewayConfig) *Gateway {
	if cfg.CooldownMinutes <= 0 {
		cfg.CooldownMinutes = 15
	}
	if cfg.MaxAlertsPerHour <= 0 {
		cfg.MaxAlertsPerHour = 10
	}
	return &Gateway{Channels: channels, Config: cfg, tracker: newInProcessTracker(), Stats: newStats()}
}

// WithTracker swaps the cooldown tracker (e.g. for the Redis-backed
// alternative in redistracker.go), returning the same Gateway for
// chaining.
func (g *Gateway) WithTracker(t cooldownTracker) *Gateway {
	g.tracker = t
	return g
}

// SendRegressionEvents fans evt out to every enabled channel, applying
// the cooldown and per-hour cap per channel independently. A channel
// failure is non-fatal to the others.
func (g *Gateway) SendRegressionEvents(events []model.RegressionEvent) {
	if len(events) == 0 {
		return
	}
	now := time.Now().UTC()
	cooldown := time.Duration(g.Config.CooldownMinutes) * time.Minute

	for _, ch := range g.Channels {
		if !ch.IsEnabled() {
			continue
		}

		var toSend []model.RegressionEvent
		for _, evt := range events {
			key := cooldownKey{channel: ch.Name(), fingerprintID: evt.FingerprintID, regType: evt.Type}
			if g.tracker.ShouldSuppress(key, evt.Severity, cooldown) {
				g.Stats.incSuppressed(ch.Name())
				continue
			}
			if !g.tracker.AllowHourlySend(ch.Name(), g.Config.MaxAlertsPerHour) {
				g.Stats.incRateLimited(ch.Name())
				continue
			}
			toSend = append(toSend, evt)
		}
		if len(toSend) == 0 {
			continue
		}

		if err := ch.SendRegressionAlerts(toSend); err != nil {
			log.Error("channel %s send error: %v", ch.Name(), err)
			g.Stats.incFailure(ch.Name())
			continue
		}
		for _, evt := range toSend {
			key := cooldownKey{channel: ch.Name(), fingerprintID: evt.FingerprintID, regType: evt.Type}
			g.tracker.RecordSend(key, evt.Severity, now)
		}
	}
}

// SendHotspotSummary fans hotspots out to every enabled channel,
// independent of the cooldown policy (hotspot summaries are a
// point-in-time ranking, not a per-key regression alert).
func (g *Gateway) SendHotspotSummary(hotspots []model.Hotspot) {
	for _, ch := range g.Channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.SendHotspotSummary(hotspots); err != nil {
			log.Error("channel %s hotspot send error: %v", ch.Name(), err)
			g.Stats.incFailure(ch.Name())
		}
	}
}

// SendDailySummary fans the daily summary out to every enabled channel.
func (g *Gateway) SendDailySummary(summary DailySummary) {
	for _, ch := range g.Channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.SendDailySummary(summary); err != nil {
			log.Error("channel %s daily summary send error: %v", ch.Name(), err)
			g.Stats.incFailure(ch.Name())
		}
	}
}

// TestChannels exercises TestConnection on every enabled channel,
// returning the per-channel error (nil on success). Backs the
// `test-channels` operator command.
func (g *Gateway) TestChannels() map[string]error {
	out := make(map[string]error)
	for _, ch := range g.Channels {
		if !ch.IsEnabled() {
			continue
		}
		out[ch.Name()] = ch.TestConnection()
	}
	return out
}
