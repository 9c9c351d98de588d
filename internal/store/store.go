package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/finsight/reportminer/internal/model"
)

// ErrNotFound is returned when a report id does not exist.
var ErrNotFound = eris.New("store: report not found")

// Filter specifies criteria for listing reports.
type Filter struct {
	Status   model.ReportStatus `json:"status,omitempty"`
	FileName string             `json:"file_name,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction reports.
type Store interface {
	CreateReport(ctx context.Context, fileName string) (*model.Report, error)
	UpdateStatus(ctx context.Context, reportID string, status model.ReportStatus, message string) error
	SetResult(ctx context.Context, reportID string, result []model.MergedRecord) error
	GetReport(ctx context.Context, reportID string) (*model.Report, error)
	ListReports(ctx context.Context, filter Filter) ([]model.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
