// Package progress provides per-conversion progress broadcasting with a
// last-event cache so a late subscriber can catch up on attach.
package progress

import "time"

// Conversion lifecycle statuses broadcast over the progress channel.
const (
	StatusValidating = "validating"
	StatusExtracting = "extracting"
	StatusProcessing = "processing"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// Event is a single progress update for one conversion.
type Event struct {
	FileID    string         `json:"file_id"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// IsTerminal reports whether the status ends the conversion.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusFailed
}

// clampProgress bounds a progress value to the 0-100 range.
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
