package alert

import (
	"sync"
	"time"

	"testing"

	"github.com/ftahirops/queryguard/model"
)

type fakeChannel struct {
	mu       sync.Mutex
	name     string
	enabled  bool
	received [][]model.RegressionEvent
	sendErr  error
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) SendRegressionAlerts(events []model.RegressionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, events)
	return nil
}

func (f *fakeChannel) SendHotspotSummary(hotspots []model.Hotspot) error { return nil }
func (f *fakeChannel) SendDailySummary(summary DailySummary) error      { return nil }
func (f *fakeChannel) TestConnection() error                           { return nil }

func (f *fakeChannel) totalSent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, batch := range f.received {
		n += len(batch)
	}
	return n
}

func TestGatewayCooldownSuppressesRepeatedEqualSeverity(t *testing.T) {
	// two equal-severity events for the same
	// (fingerprint, type) sent back to back, well inside
	// cooldown_minutes=15 — channel receives exactly one.
	ch := &fakeChannel{name: "test", enabled: true}
	gw := NewGateway([]Channel{ch}, GatewayConfig{CooldownMinutes: 15, MaxAlertsPerHour: 100})

	evt := model.RegressionEvent{FingerprintID: "fp1", Type: model.RegressionDuration, Severity: model.SeverityMedium}
	gw.SendRegressionEvents([]model.RegressionEvent{evt})
	gw.SendRegressionEvents([]model.RegressionEvent{evt})

	if got := ch.totalSent(); got != 1 {
		t.Fatalf("events received = %d, want 1 (second suppressed by cooldown)", got)
	}
}

func TestGatewaySeverityIncreaseBypassesCooldown(t *testing.T) {
	ch := &fakeChannel{name: "test", enabled: true}
	gw := NewGateway([]Channel{ch}, GatewayConfig{CooldownMinutes: 15, MaxAlertsPerHour: 100})

	low := model.RegressionEvent{FingerprintID: "fp1", Type: model.RegressionDuration, Severity: model.SeverityLow}
	high := model.RegressionEvent{FingerprintID: "fp1", Type: model.RegressionDuration, Severity: model.SeverityCritical}

	gw.SendRegressionEvents([]model.RegressionEvent{low})
	gw.SendRegressionEvents([]model.RegressionEvent{high})

	if got := ch.totalSent(); got != 2 {
		t.Fatalf("events received = %d, want 2 (severity increase bypasses cooldown)", got)
	}
}

func TestGatewayHourlyCapSuppresses(t *testing.T) {
	ch := &fakeChannel{name: "test", enabled: true}
	gw := NewGateway([]Channel{ch}, GatewayConfig{CooldownMinutes: 0, MaxAlertsPerHour: 2})

	for i := 0; i < 5; i++ {
		evt := model.RegressionEvent{FingerprintID: "fp-distinct", Type: model.RegressionType(string(rune('a' + i)))}
		gw.SendRegressionEvents([]model.RegressionEvent{evt})
	}

	if got := ch.totalSent(); got != 2 {
		t.Fatalf("events received = %d, want 2 (hourly cap)", got)
	}
	if got := gw.Stats.RateLimited()["test"]; got != 3 {
		t.Fatalf("rate_limited counter = %d, want 3", got)
	}
}

func TestGatewayChannelFailureIsolated(t *testing.T) {
	failing := &fakeChannel{name: "failing", enabled: true, sendErr: errTest}
	ok := &fakeChannel{name: "ok", enabled: true}
	gw := NewGateway([]Channel{failing, ok}, GatewayConfig{})

	gw.SendRegressionEvents([]model.RegressionEvent{{FingerprintID: "fp1", Type: model.RegressionDuration}})

	if ok.totalSent() != 1 {
		t.Fatal("healthy channel must still receive the event")
	}
	if gw.Stats.Failures()["failing"] != 1 {
		t.Fatal("failing channel must increment its failure counter")
	}
}

var errTest = errTestType{}

type errTestType struct{}

func (errTestType) Error() string { return "send failed" }

func TestInProcessTrackerCooldownWindow(t *testing.T) {
	tracker := newInProcessTracker()
	key := cooldownKey{channel: "c", fingerprintID: "fp", regType: model.RegressionCPU}

	if tracker.ShouldSuppress(key, model.SeverityLow, time.Minute) {
		t.Fatal("first send must never be suppressed")
	}
	tracker.RecordSend(key, model.SeverityLow, time.Now())
	if !tracker.ShouldSuppress(key, model.SeverityLow, time.Minute) {
		t.Fatal("send within cooldown window at equal severity must be suppressed")
	}
}
