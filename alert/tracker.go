package alert

import (
	"sync"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// inProcessTracker is the default cooldownTracker.
type inProcessTracker struct {
	mu        sync.Mutex
	lastSend  map[cooldownKey]sendRecord
	hourly    map[string]hourlyCounter
}

type sendRecord struct {
	at       time.Time
	severity model.Severity
}

type hourlyCounter struct {
	windowStart time.Time
	count       int
}

func newInProcessTracker() *inProcessTracker {
	return &inProcessTracker{
		lastSend: make(map[cooldownKey]sendRecord),
		hourly:   make(map[string]hourlyCounter),
	}
}

func (t *inProcessTracker) ShouldSuppress(key cooldownKey, severity model.Severity, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.lastSend[key]
	if !ok {
		return false
	}
	if time.Since(prev.at) >= cooldown {
		return false
	}
	// Severity increase bypasses the cooldown.
	return severity <= prev.severity
}

func (t *inProcessTracker) RecordSend(key cooldownKey, severity model.Severity, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSend[key] = sendRecord{at: at, severity: severity}
}

func (t *inProcessTracker) AllowHourlySend(channel string, cap int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	counter := t.hourly[channel]
	if now.Sub(counter.windowStart) >= time.Hour {
		counter = hourlyCounter{windowStart: now, count: 0}
	}
	if counter.count >= cap {
		t.hourly[channel] = counter
		return false
	}
	counter.count++
	t.hourly[channel] = counter
	return true
}
