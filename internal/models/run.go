package models

import (
	"time"
)

// RunMode identifies what started a generation run
type RunMode string

const (
	RunModeRun       RunMode = "run"
	RunModeDryRun    RunMode = "dry-run"
	RunModeScheduled RunMode = "scheduled"
	RunModeDashboard RunMode = "dashboard"
)

// RunStatus represents the lifecycle of a generation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// GenerationRun records one pass of query -> enrich -> classify -> generate -> export
type GenerationRun struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	RunID            string      `gorm:"uniqueIndex;not null" json:"run_id"`
	Mode             RunMode     `gorm:"index" json:"mode"`
	Status           RunStatus   `gorm:"default:'running'" json:"status"`
	EventsLoaded     int         `json:"events_loaded"`
	EventsSkipped    int         `json:"events_skipped"`
	EventsProcessed  int         `json:"events_processed"`
	ContentGenerated int         `json:"content_generated"`
	ContentErrors    int         `json:"content_errors"`
	StartedAt        time.Time   `gorm:"index" json:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at"`
	DurationMS       int64       `json:"duration_ms"`
	OutputFiles      StringSlice `gorm:"type:json" json:"output_files"`
	Settings         JSON        `gorm:"type:json" json:"settings,omitempty"`
	ErrorMessage     string      `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Complete marks the run finished at t
func (r *GenerationRun) Complete(t time.Time) {
	r.Status = RunStatusCompleted
	r.CompletedAt = &t
	r.DurationMS = t.Sub(r.StartedAt).Milliseconds()
}

// Fail marks the run failed at t with err
func (r *GenerationRun) Fail(t time.Time, err error) {
	r.Complete(t)
	r.Status = RunStatusFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// IsFinished returns true once the run has completed or failed
func (r *GenerationRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
