package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/event-content-agent/internal/angles"
	"github.com/event-content-agent/internal/enrichment"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/warehouse"
)

// dryRunPreview is how many events a dry run lists individually
const dryRunPreview = 5

// EventPreview shows what a dry run would generate for one event
type EventPreview struct {
	EventID string         `json:"event_id"`
	Artist  string         `json:"artist"`
	Rank    int            `json:"rank"`
	Angles  []models.Angle `json:"angles"`
}

// DryRunResult is the outcome of a run with no LLM calls
type DryRunResult struct {
	RunID         string               `json:"run_id"`
	EventsLoaded  int                  `json:"events_loaded"`
	EventsSkipped int                  `json:"events_skipped"`
	EventsUsed    int                  `json:"events_used"`
	Preview       []EventPreview       `json:"preview"`
	AngleTotals   map[models.Angle]int `json:"angle_totals"`
	TotalContent  int                  `json:"total_content"`
}

// DryRun queries, enriches and classifies events without generating content
func (a *Agent) DryRun(ctx context.Context, maxEvents, maxAngles int) (*DryRunResult, error) {
	if maxEvents <= 0 {
		maxEvents = a.cfg.Generation.MaxEvents
	}
	if maxAngles <= 0 {
		maxAngles = a.cfg.Generation.MaxAnglesPerEvent
	}

	run := &models.GenerationRun{
		RunID:     a.newID(),
		Mode:      models.RunModeDryRun,
		Status:    models.RunStatusRunning,
		StartedAt: a.now(),
		Settings:  models.JSON{"max_events": maxEvents, "max_angles_per_event": maxAngles},
	}
	a.createRun(ctx, run)

	loaded, err := a.LoadEvents(ctx)
	if err != nil {
		return nil, a.fail(ctx, run, err)
	}
	events := enrichment.Top(loaded.Events, maxEvents)

	result := &DryRunResult{
		RunID:         run.RunID,
		EventsLoaded:  len(loaded.Events),
		EventsSkipped: loaded.Skipped,
		EventsUsed:    len(events),
		AngleTotals:   angles.Count(events, maxAngles),
	}
	for i, e := range events {
		if i < dryRunPreview {
			result.Preview = append(result.Preview, EventPreview{
				EventID: e.EventID,
				Artist:  e.DisplayName(),
				Rank:    e.Rank,
				Angles:  angles.Limit(angles.Classify(e), maxAngles),
			})
		}
	}
	for _, n := range result.AngleTotals {
		result.TotalContent += n
	}

	run.EventsLoaded = result.EventsLoaded
	run.EventsSkipped = result.EventsSkipped
	run.EventsProcessed = result.EventsUsed
	run.Complete(a.now())
	a.updateRun(ctx, run)
	a.metrics.ObserveRun(string(run.Mode), time.Duration(run.DurationMS)*time.Millisecond)

	return result, nil
}

// ConnectionReport describes warehouse and LLM reachability
type ConnectionReport struct {
	WarehouseTime time.Time              `json:"warehouse_time"`
	WarehouseErr  string                 `json:"warehouse_error,omitempty"`
	Views         []warehouse.ViewStatus `json:"views"`
	SampleView    string                 `json:"sample_view,omitempty"`
	SampleRows    []warehouse.RawRow     `json:"sample_rows,omitempty"`
	Provider      string                 `json:"provider,omitempty"`
	Model         string                 `json:"model,omitempty"`
	LLMResponse   string                 `json:"llm_response,omitempty"`
	LLMErr        string                 `json:"llm_error,omitempty"`
}

// OK reports whether every check passed
func (r *ConnectionReport) OK() bool {
	if r.WarehouseErr != "" || r.LLMErr != "" {
		return false
	}
	for _, v := range r.Views {
		if !v.Accessible {
			return false
		}
	}
	return true
}

// TestConnection checks the warehouse (timestamp, view access, sample rows)
// and, when a model is configured, the LLM.
func (a *Agent) TestConnection(ctx context.Context, sampleLimit int) *ConnectionReport {
	report := &ConnectionReport{}

	ts, err := a.warehouse.TestConnection(ctx)
	if err != nil {
		report.WarehouseErr = err.Error()
	} else {
		report.WarehouseTime = ts
		report.Views = a.warehouse.ValidateViews(ctx)

		view := a.cfg.Warehouse.Views.BaseEvents
		if sampleLimit > 0 && view != "" {
			rows, err := a.warehouse.SampleRows(ctx, view, sampleLimit)
			if err != nil {
				a.log.Warn().Err(err).Str("view", view).Msg("Failed to sample rows")
			} else {
				report.SampleView = view
				report.SampleRows = rows
			}
		}
	}

	if a.model != nil {
		report.Provider = a.model.Provider()
		report.Model = a.model.Model()
		resp, err := a.model.Ping(ctx)
		if err != nil {
			report.LLMErr = err.Error()
		} else {
			report.LLMResponse = resp
		}
	}

	return report
}

// Quality loads events and reports their data completeness
func (a *Agent) Quality(ctx context.Context) (enrichment.QualityReport, error) {
	loaded, err := a.LoadEvents(ctx)
	if err != nil {
		return enrichment.QualityReport{}, err
	}
	return enrichment.ValidateDataQuality(loaded.Events), nil
}

// Regenerate produces fresh content for one event and angle using the same
// platform and overrides rules as Run
func (a *Agent) Regenerate(ctx context.Context, e *models.EnrichedEvent, angle models.Angle, opts RunOptions) (*models.ContentItem, error) {
	if a.model == nil {
		return nil, fmt.Errorf("no text generation model configured")
	}
	if !angle.Valid() {
		return nil, fmt.Errorf("unknown content angle %q", angle)
	}
	return a.processor(opts).Generate(ctx, e, angle), nil
}
