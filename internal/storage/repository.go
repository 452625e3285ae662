package storage

import (
	"context"
	"errors"

	"github.com/event-content-agent/internal/models"
)

// ErrNotFound is returned when a run or content item does not exist
var ErrNotFound = errors.New("not found")

// Repository defines the interface for data persistence
type Repository interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.GenerationRun) error
	UpdateRun(ctx context.Context, run *models.GenerationRun) error
	GetRun(ctx context.Context, runID string) (*models.GenerationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.GenerationRun, error)
	LatestRun(ctx context.Context, status models.RunStatus) (*models.GenerationRun, error)

	// Content operations
	SaveContent(ctx context.Context, runID string, items []*models.ContentItem) error
	GetContent(ctx context.Context, id uint) (*models.ContentItem, error)
	ListContent(ctx context.Context, filter ContentFilter) ([]*models.ContentItem, error)
	UpdateContent(ctx context.Context, item *models.ContentItem) error

	// Maintenance
	Close() error
	Migrate() error
}

// RunFilter defines filtering options for runs
type RunFilter struct {
	Status *models.RunStatus
	Mode   *models.RunMode
	Limit  int
	Offset int
}

// ContentFilter defines filtering options for content items
type ContentFilter struct {
	RunID         string
	EventID       string
	Artist        string
	Angle         *models.Angle
	MinPriority   int
	IncludeErrors bool
	Limit         int
	Offset        int
	OrderBy       string // "priority", "generated_at", "artist_name", "content_angle", "data_quality_score"
	OrderDesc     bool
}

// ContentOrderColumns are the columns content can be sorted by
var ContentOrderColumns = map[string]bool{
	"priority":           true,
	"generated_at":       true,
	"artist_name":        true,
	"content_angle":      true,
	"data_quality_score": true,
}

// DefaultRunFilter returns a filter with sensible defaults
func DefaultRunFilter() RunFilter {
	return RunFilter{Limit: 20}
}

// DefaultContentFilter returns a filter with sensible defaults
func DefaultContentFilter() ContentFilter {
	return ContentFilter{
		Limit:     100,
		OrderBy:   "priority",
		OrderDesc: true,
	}
}
