package model

import "time"

// ReportStatus is the lifecycle state of a report extraction job.
type ReportStatus string

const (
	StatusPending    ReportStatus = "PENDING"
	StatusProcessing ReportStatus = "PROCESSING"
	StatusCompleted  ReportStatus = "COMPLETED"
	StatusFailed     ReportStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Report is a persisted extraction job. Created PENDING on submission,
// moved to PROCESSING by the worker that owns it, and finished in exactly
// one of COMPLETED (result attached) or FAILED (message records the error).
// A terminal report is immutable; re-submitting a document creates a new one.
type Report struct {
	ID        string         `json:"report_id"`
	FileName  string         `json:"file_name"`
	Status    ReportStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Result    []MergedRecord `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
