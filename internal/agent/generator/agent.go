// Package generator runs the query -> enrich -> classify -> generate -> export
// pipeline and records each pass as a GenerationRun.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/enrichment"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/storage"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
)

// ErrNoEvents is returned when a run has nothing to generate for
var ErrNoEvents = errors.New("no events to generate content for")

// Warehouse is the part of the warehouse client the agent uses
type Warehouse interface {
	QueryTopEvents(ctx context.Context) (*warehouse.Tables, error)
	TestConnection(ctx context.Context) (time.Time, error)
	ValidateViews(ctx context.Context) []warehouse.ViewStatus
	SampleRows(ctx context.Context, view string, limit int) ([]warehouse.RawRow, error)
}

// ContentModel generates content and reports which model it uses
type ContentModel interface {
	batch.ContentGenerator
	Ping(ctx context.Context) (string, error)
	Model() string
	Provider() string
}

// Publisher pushes webhook payloads downstream
type Publisher interface {
	Send(ctx context.Context, payload export.WebhookPayload) error
}

// Tracker mirrors content rows somewhere reviewers can see them
type Tracker interface {
	SyncContent(ctx context.Context, items []*models.ContentItem) (int, int, error)
}

// Agent runs generation passes
type Agent struct {
	warehouse Warehouse
	model     ContentModel
	writer    *export.Writer
	repo      storage.Repository
	webhook   Publisher
	tracker   Tracker
	cfg       *config.Config
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Agent
type Option func(*Agent)

// WithRepository persists runs and content
func WithRepository(repo storage.Repository) Option {
	return func(a *Agent) { a.repo = repo }
}

// WithWebhook enables webhook delivery
func WithWebhook(p Publisher) Option {
	return func(a *Agent) { a.webhook = p }
}

// WithTracker enables sheet tracking
func WithTracker(t Tracker) Option {
	return func(a *Agent) { a.tracker = t }
}

// WithMetrics records run metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithIDGenerator overrides uuid run ids
func WithIDGenerator(fn func() string) Option {
	return func(a *Agent) { a.newID = fn }
}

// NewAgent creates a new generator agent. model may be nil for agents that
// only load data or dry-run.
func NewAgent(wh Warehouse, model ContentModel, writer *export.Writer, cfg *config.Config, log *logger.Logger, opts ...Option) *Agent {
	a := &Agent{
		warehouse: wh,
		model:     model,
		writer:    writer,
		cfg:       cfg,
		log:       log.WithComponent("pipeline"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadResult is the outcome of querying and enriching warehouse data
type LoadResult struct {
	Tables     *warehouse.Tables
	Events     []*models.EnrichedEvent
	Skipped    int
	Duplicates map[string]int
}

// LoadEvents queries the four views and enriches the joined rows
func (a *Agent) LoadEvents(ctx context.Context) (*LoadResult, error) {
	tables, err := a.warehouse.QueryTopEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse: %w", err)
	}

	res, err := enrichment.NewProcessor(a.log, enrichment.WithMetrics(a.metrics), enrichment.WithClock(a.now)).Process(tables)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich events: %w", err)
	}

	return &LoadResult{
		Tables:     tables,
		Events:     res.Events,
		Skipped:    len(res.Skipped),
		Duplicates: res.Duplicates,
	}, nil
}

// RunOptions controls one generation pass. Zero values fall back to config.
type RunOptions struct {
	Mode              models.RunMode
	MaxEvents         int
	MaxAnglesPerEvent int
	Platform          string
	Formats           []export.Format
	Overrides         *ai.PromptOverrides
	// Events skips the warehouse and generates for exactly these events
	Events          []*models.EnrichedEvent
	SkipFiles       bool
	Webhook         bool
	WebhookMaxItems int
}

// RunResult is the outcome of a generation pass
type RunResult struct {
	Run        *models.GenerationRun
	Items      []*models.ContentItem
	Metadata   batch.Metadata
	Files      []string
	Batch      *batch.Result
	WebhookErr error
	Tracked    int
}

func (a *Agent) processor(opts RunOptions) *batch.Processor {
	maxAngles := opts.MaxAnglesPerEvent
	if maxAngles <= 0 {
		maxAngles = a.cfg.Generation.MaxAnglesPerEvent
	}
	platform := opts.Platform
	if platform == "" {
		platform = a.cfg.Generation.Platform
	}

	return batch.NewProcessor(a.model, a.log,
		batch.WithMaxWorkers(a.cfg.Batch.MaxWorkers),
		batch.WithRateLimitDelay(a.cfg.Batch.RateLimitDelay),
		batch.WithMaxAnglesPerEvent(maxAngles),
		batch.WithPlatform(models.ParsePlatform(platform)),
		batch.WithOverrides(opts.Overrides),
		batch.WithMetrics(a.metrics),
		batch.WithClock(a.now),
	)
}

// Run executes a full generation pass
func (a *Agent) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if a.model == nil {
		return nil, fmt.Errorf("no text generation model configured")
	}
	if opts.Mode == "" {
		opts.Mode = models.RunModeRun
	}
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = a.cfg.Generation.MaxEvents
	}

	run := &models.GenerationRun{
		RunID:     a.newID(),
		Mode:      opts.Mode,
		Status:    models.RunStatusRunning,
		StartedAt: a.now(),
		Settings: models.JSON{
			"provider":   a.model.Provider(),
			"model":      a.model.Model(),
			"platform":   opts.Overrides.PlatformOr(models.ParsePlatform(firstNonEmpty(opts.Platform, a.cfg.Generation.Platform))),
			"max_events": maxEvents,
		},
	}
	log := a.log.WithRunID(run.RunID)
	log.Info().Str("mode", string(run.Mode)).Msg("Starting generation run")

	a.createRun(ctx, run)
	defer func() {
		a.metrics.ObserveRun(string(run.Mode), time.Duration(run.DurationMS)*time.Millisecond)
	}()

	events := opts.Events
	if events == nil {
		loaded, err := a.LoadEvents(ctx)
		if err != nil {
			return nil, a.fail(ctx, run, err)
		}
		run.EventsLoaded = len(loaded.Events)
		run.EventsSkipped = loaded.Skipped
		events = enrichment.Top(loaded.Events, maxEvents)
	} else {
		run.EventsLoaded = len(events)
	}
	if len(events) == 0 {
		return nil, a.fail(ctx, run, ErrNoEvents)
	}

	br := a.processor(opts).ProcessEvents(ctx, events)
	result := &RunResult{Run: run, Items: br.Items, Batch: br}

	run.EventsProcessed = len(events)
	run.ContentGenerated = br.ProcessedCount
	run.ContentErrors = br.ErrorCount

	if err := ctx.Err(); err != nil {
		return result, a.fail(ctx, run, fmt.Errorf("generation interrupted: %w", err))
	}

	result.Metadata = batch.BuildMetadata(br.Items, run.StartedAt, a.now())

	if !opts.SkipFiles && a.writer != nil {
		files, err := a.writer.SaveRun(br.Items, result.Metadata, opts.Formats, run.StartedAt)
		if err != nil {
			return result, a.fail(ctx, run, fmt.Errorf("failed to export content: %w", err))
		}
		result.Files = files
		run.OutputFiles = files
	}

	if a.repo != nil {
		if err := a.repo.SaveContent(ctx, run.RunID, br.Items); err != nil {
			log.Warn().Err(err).Msg("Failed to persist content")
		}
	}

	if opts.Webhook && a.webhook != nil {
		maxItems := opts.WebhookMaxItems
		if maxItems <= 0 {
			maxItems = a.cfg.Export.WebhookMaxItems
		}
		payload := export.BuildWebhookPayload(br.Items, maxItems, a.now())
		if err := a.webhook.Send(ctx, payload); err != nil {
			log.Warn().Err(err).Msg("Webhook delivery failed")
			result.WebhookErr = err
		}
	}

	if a.tracker != nil {
		added, updated, err := a.tracker.SyncContent(ctx, br.Items)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to sync content to tracker")
		}
		result.Tracked = added + updated
	}

	run.Complete(a.now())
	a.updateRun(ctx, run)

	log.Info().
		Int("events", run.EventsProcessed).
		Int("generated", run.ContentGenerated).
		Int("errors", run.ContentErrors).
		Int64("duration_ms", run.DurationMS).
		Msg("Generation run completed")

	return result, nil
}

func (a *Agent) createRun(ctx context.Context, run *models.GenerationRun) {
	if a.repo == nil {
		return
	}
	if err := a.repo.CreateRun(ctx, run); err != nil {
		a.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record run")
	}
}

func (a *Agent) updateRun(ctx context.Context, run *models.GenerationRun) {
	if a.repo == nil {
		return
	}
	// the run outcome is saved even when the run's own context has ended
	if err := a.repo.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		a.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to update run")
	}
}

func (a *Agent) fail(ctx context.Context, run *models.GenerationRun, err error) error {
	run.Fail(a.now(), err)
	a.updateRun(ctx, run)
	a.log.Error().Err(err).Str("run_id", run.RunID).Msg("Generation run failed")
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
