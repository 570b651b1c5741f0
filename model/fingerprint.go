package model

import "time"

// Fingerprint is the stable identity of a logically-equivalent query
// family, derived by the fingerprint package from raw SQL text.
type Fingerprint struct {
	ID             string    `json:"id"`
	Hash           []byte    `json:"hash"` // 8-32 bytes, collision-resistant
	NormalizedText string    `json:"normalized_text"`
	SampleText     string    `json:"sample_text"` // <=4 KiB, ellipsis-truncated
	FirstSeenUTC   time.Time `json:"first_seen_utc"`
	LastSeenUTC    time.Time `json:"last_seen_utc"`
	InstanceName   string    `json:"instance_name"`
	DatabaseName   string    `json:"database_name"`
}

// PlanIdentity describes the execution plan attached to an observation
// or sample. It is optional: engines that do not expose plan identity
// leave both fields zero.
type PlanIdentity struct {
	PlanHash     []byte `json:"plan_hash,omitempty"`
	VendorPlanID int64  `json:"vendor_plan_id,omitempty"`
	IsForced     bool   `json:"is_forced,omitempty"`
}

// HashHex renders the fingerprint hash as a lowercase hex string, used
// for log lines and store keys that want a printable identity.
func (f Fingerprint) HashHex() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(f.Hash)*2)
	for i, b := range f.Hash {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
