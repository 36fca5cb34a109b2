package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SagaPhase represents the current phase of a batch saga.
type SagaPhase string

const (
	// PhaseDiscovering enumerates candidate URLs for the provider.
	PhaseDiscovering SagaPhase = "discovering"
	// PhaseFingerprinting filters already-ingested URLs by content hash.
	PhaseFingerprinting SagaPhase = "fingerprinting"
	// PhaseProcessing fetches, extracts and normalizes the surviving URLs.
	PhaseProcessing SagaPhase = "processing"
	// PhasePersisting batch-writes recipes and fingerprints.
	PhasePersisting SagaPhase = "persisting"
	// PhaseCompleted is the successful terminal phase.
	PhaseCompleted SagaPhase = "completed"
	// PhaseFailed is the unsuccessful terminal phase.
	PhaseFailed SagaPhase = "failed"
)

// Terminal reports whether the phase is final.
func (p SagaPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// FailedURL records one URL that permanently failed during processing.
type FailedURL struct {
	URL        string    `json:"url"`
	ErrorClass string    `json:"error_class"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FailedURLList stores failure records as a JSONB array.
type FailedURLList []FailedURL

// Scan implements the sql.Scanner interface.
func (l *FailedURLList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		*l = FailedURLList{}
		return nil
	}

	return json.Unmarshal(data, l)
}

// Value implements the driver.Valuer interface.
func (l FailedURLList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// SagaState is the orchestrator's durable checkpoint, one-to-one with a
// Batch via CorrelationID. It is persisted after every phase transition
// and after every individual item, so a crash loses at most one in-flight
// item of work. CurrentIndex into FingerprintedURLs is the single source
// of truth for what has been attempted: on resume, all indices below it
// are skipped.
type SagaState struct {
	CorrelationID string    `db:"correlation_id" json:"correlation_id"`
	ProviderID    string    `db:"provider_id"    json:"provider_id"`
	CurrentPhase  SagaPhase `db:"current_phase"  json:"current_phase"`

	DiscoveredURLs    StringSlice   `db:"discovered_urls"    json:"discovered_urls"`
	FingerprintedURLs StringSlice   `db:"fingerprinted_urls" json:"fingerprinted_urls"`
	ProcessedURLs     StringSlice   `db:"processed_urls"     json:"processed_urls"`
	FailedURLs        FailedURLList `db:"failed_urls"        json:"failed_urls"`

	// CurrentIndex is the resume index into FingerprintedURLs.
	// Invariant: CurrentIndex <= len(FingerprintedURLs).
	CurrentIndex int `db:"current_index" json:"current_index"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	StartedAt   time.Time  `db:"started_at"   json:"started_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Remaining returns how many fingerprinted URLs have not been attempted yet.
func (s *SagaState) Remaining() int {
	if s.CurrentIndex >= len(s.FingerprintedURLs) {
		return 0
	}
	return len(s.FingerprintedURLs) - s.CurrentIndex
}
