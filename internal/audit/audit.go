package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names an audited operation.
type Action string

const (
	ActionReportExport       Action = "oee.report.export"
	ActionStateEventIngest   Action = "oee.state_events.ingest"
	ActionStateEventBackfill Action = "oee.state_events.backfill"
)

// Entry is one audited call against the OEE API.
type Entry struct {
	ID            string          `json:"id"`
	PlantID       string          `json:"plant_id,omitempty"`
	Actor         string          `json:"actor"`
	Role          string          `json:"role,omitempty"`
	Action        Action          `json:"action"`
	ResourceType  string          `json:"resource_type,omitempty"`
	ResourceID    string          `json:"resource_id,omitempty"`
	EntityType    string          `json:"entity_type,omitempty"`
	EntityRef     string          `json:"entity_ref,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	PayloadDigest string          `json:"payload_digest,omitempty"`
	IP            string          `json:"ip,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows a List call. Zero fields match everything.
type Filter struct {
	Action    Action
	EntityRef string
	Since     time.Time
	Limit     int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Reader lists audit entries, newest first.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON is the hex SHA-256 of a metadata payload.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = json.RawMessage("{}")
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}
