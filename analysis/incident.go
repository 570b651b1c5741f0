package analysis

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// IncidentRecord is the structured forensic snapshot written the first
// time a critical regression opens for a fingerprint (see
// IncidentRecorder for how long that mark lasts).
type IncidentRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	FingerprintID string    `json:"fingerprint_id"`
	Instance      string    `json:"instance"`
	Database      string    `json:"database"`
	Type          string    `json:"type"`
	MetricName    string    `json:"metric_name"`
	BaselineValue float64   `json:"baseline_value"`
	CurrentValue  float64   `json:"current_value"`
	ChangePercent float64   `json:"change_percent"`
	IsPlanChange  bool      `json:"is_plan_change,omitempty"`
	EventID       string    `json:"event_id"`
}

// IncidentRecorder appends incident records to a JSONL file under the
// daemon's data directory. Deduplication is in-process per run: one
// record per fingerprint until the daemon restarts or Forget is called
// for that fingerprint. The recorder does not watch event status, so
// resolving the critical event does not by itself clear the mark.
type IncidentRecorder struct {
	path string

	mu       sync.Mutex
	recorded map[string]bool
}

// NewIncidentRecorder returns a recorder writing to
// dataDir/incidents.jsonl.
func NewIncidentRecorder(dataDir string) *IncidentRecorder {
	return &IncidentRecorder{
		path:     filepath.Join(dataDir, "incidents.jsonl"),
		recorded: make(map[string]bool),
	}
}

// Observe inspects newly created events and writes an incident record
// for each first-seen critical one. Non-critical events are ignored.
func (r *IncidentRecorder) Observe(events []model.RegressionEvent) {
	for _, evt := range events {
		if evt.Severity != model.SeverityCritical {
			continue
		}
		r.mu.Lock()
		seen := r.recorded[evt.FingerprintID]
		if !seen {
			r.recorded[evt.FingerprintID] = true
		}
		r.mu.Unlock()
		if seen {
			continue
		}

		record := IncidentRecord{
			Timestamp:     evt.DetectedAtUTC,
			FingerprintID: evt.FingerprintID,
			Instance:      evt.Target.InstanceName,
			Database:      evt.Target.DatabaseName,
			Type:          string(evt.Type),
			MetricName:    evt.MetricName,
			BaselineValue: evt.BaselineValue,
			CurrentValue:  evt.CurrentValue,
			ChangePercent: evt.ChangePercent,
			IsPlanChange:  evt.IsPlanChange,
			EventID:       evt.ID,
		}
		if err := r.append(record); err != nil {
			log.Error("incident record write failed fingerprint=%s: %v", evt.FingerprintID, err)
		} else {
			log.Info("incident recorded fingerprint=%s type=%s change=%.0f%%", evt.FingerprintID, evt.Type, evt.ChangePercent)
		}
	}
}

// Forget clears the dedup mark for a fingerprint, so a future critical
// event records a fresh incident.
func (r *IncidentRecorder) Forget(fingerprintID string) {
	r.mu.Lock()
	delete(r.recorded, fingerprintID)
	r.mu.Unlock()
}

func (r *IncidentRecorder) append(record IncidentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(record)
}

// ReadIncidentLog reads all records from a JSONL incident file,
// skipping malformed lines.
func ReadIncidentLog(path string) ([]IncidentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []IncidentRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line limit
	for scanner.Scan() {
		var rec IncidentRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
