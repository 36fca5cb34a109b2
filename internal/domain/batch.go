// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// BatchStatus represents the lifecycle status of an ingestion batch.
type BatchStatus string

const (
	// BatchStatusPending means the batch has been created but not started.
	BatchStatusPending BatchStatus = "pending"
	// BatchStatusInProgress means the batch is currently being processed.
	BatchStatusInProgress BatchStatus = "in_progress"
	// BatchStatusCompleted means the batch finished within its bounds.
	BatchStatusCompleted BatchStatus = "completed"
	// BatchStatusFailed means the batch aborted with a non-recoverable error.
	BatchStatusFailed BatchStatus = "failed"
)

// Terminal reports whether the status is final. A batch in a terminal
// status is never mutated again.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// Batch represents one bounded ingestion run for one provider.
// A batch is bounded twice: by MaxItemCount and by MaxDuration, whichever
// is reached first. ProcessedCount never exceeds MaxItemCount.
type Batch struct {
	ID           string `db:"id"             json:"id"`
	ProviderID   string `db:"provider_id"    json:"provider_id"`
	MaxItemCount int    `db:"max_item_count" json:"max_item_count"`
	// MaxDurationMs is the configured wall-clock bound in milliseconds.
	MaxDurationMs int64 `db:"max_duration_ms" json:"max_duration_ms"`

	Status      BatchStatus `db:"status"       json:"status"`
	StartedAt   time.Time   `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`

	ProcessedCount int `db:"processed_count" json:"processed_count"`
	SkippedCount   int `db:"skipped_count"   json:"skipped_count"`
	FailedCount    int `db:"failed_count"    json:"failed_count"`

	ProcessedURLs StringSlice `db:"processed_urls" json:"processed_urls"`
	FailedURLs    StringSlice `db:"failed_urls"    json:"failed_urls"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MaxDuration returns the wall-clock bound as a time.Duration.
func (b *Batch) MaxDuration() time.Duration {
	return time.Duration(b.MaxDurationMs) * time.Millisecond
}

// Elapsed returns the time elapsed since the batch started.
func (b *Batch) Elapsed(now time.Time) time.Duration {
	return now.Sub(b.StartedAt)
}

// BoundsReached reports whether either batch bound has been satisfied.
// Ties break in favor of stopping: the batch never exceeds either bound.
func (b *Batch) BoundsReached(now time.Time) bool {
	return b.ProcessedCount >= b.MaxItemCount || b.Elapsed(now) >= b.MaxDuration()
}
