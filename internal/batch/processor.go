package batch

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/angles"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/priority"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
)

// Defaults for a Processor
const (
	DefaultMaxWorkers        = 3
	DefaultRateLimitDelay    = time.Second
	DefaultMaxAnglesPerEvent = 2
)

// ContentGenerator produces copy for one event and angle
type ContentGenerator interface {
	CreateSocialPost(ctx context.Context, e *models.EnrichedEvent, angle models.Angle, platform models.Platform, overrides *ai.PromptOverrides) ai.GeneratedContent
}

// Result summarizes one batch
type Result struct {
	Items          []*models.ContentItem
	EventCount     int
	ProcessedCount int // successful items
	ErrorCount     int // error-flagged items
	CancelledCount int // pairs never attempted because the context ended
	Duration       time.Duration
}

// Processor generates content for event x angle pairs with a bounded worker pool
type Processor struct {
	gen       ContentGenerator
	log       *logger.Logger
	metrics   *metrics.Metrics
	limiter   *ratelimit.MultiLimiter
	now       func() time.Time
	workers   int
	delay     time.Duration
	maxAngles int
	platform  models.Platform
	overrides *ai.PromptOverrides
}

// Option configures a Processor
type Option func(*Processor)

// WithMaxWorkers bounds the number of concurrent generation calls
func WithMaxWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRateLimitDelay sets the minimum spacing between call starts
func WithRateLimitDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithMaxAnglesPerEvent caps how many angles are generated per event
func WithMaxAnglesPerEvent(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAngles = n
		}
	}
}

// WithPlatform sets the target platform
func WithPlatform(platform models.Platform) Option {
	return func(p *Processor) { p.platform = models.ParsePlatform(string(platform)) }
}

// WithOverrides applies custom prompts to every call
func WithOverrides(o *ai.PromptOverrides) Option {
	return func(p *Processor) { p.overrides = o }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a batch processor
func NewProcessor(gen ContentGenerator, log *logger.Logger, opts ...Option) *Processor {
	p := &Processor{
		gen:       gen,
		log:       log.WithComponent("batch"),
		now:       time.Now,
		workers:   DefaultMaxWorkers,
		delay:     DefaultRateLimitDelay,
		maxAngles: DefaultMaxAnglesPerEvent,
		platform:  models.PlatformTikTok,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.limiter = ratelimit.NewMultiLimiter()
	p.limiter.SetInterval(ratelimit.LimiterBatch, p.delay)
	return p
}

type job struct {
	event *models.EnrichedEvent
	angle models.Angle
}

func (p *Processor) jobs(events []*models.EnrichedEvent) []job {
	var jobs []job
	for _, e := range events {
		for _, angle := range angles.Limit(angles.Classify(e), p.maxAngles) {
			jobs = append(jobs, job{event: e, angle: angle})
		}
	}
	return jobs
}

// ProcessEvents generates content for every classified pair. A failed pair
// becomes an error-flagged item; no error escapes. When ctx ends no further
// calls are issued. Items come back sorted by priority, highest first.
func (p *Processor) ProcessEvents(ctx context.Context, events []*models.EnrichedEvent) *Result {
	start := p.now()
	jobs := p.jobs(events)

	p.log.Info().
		Int("events", len(events)).
		Int("pairs", len(jobs)).
		Int("workers", p.workers).
		Str("platform", string(p.platform)).
		Msg("Starting batch content generation")

	slots := make([]*models.ContentItem, len(jobs))
	var errorCount, cancelled int32

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for i, j := range jobs {
		if ctx.Err() != nil {
			atomic.AddInt32(&cancelled, int32(len(jobs)-i))
			break
		}
		g.Go(func() error {
			if err := p.limiter.Wait(ctx, ratelimit.LimiterBatch); err != nil {
				atomic.AddInt32(&cancelled, 1)
				return nil
			}

			item := p.Generate(ctx, j.event, j.angle)
			if item.IsError {
				atomic.AddInt32(&errorCount, 1)
			}
			slots[i] = item
			return nil
		})
	}
	_ = g.Wait()

	items := make([]*models.ContentItem, 0, len(slots))
	for _, item := range slots {
		if item != nil {
			items = append(items, item)
		}
	}
	SortByPriority(items)

	result := &Result{
		Items:          items,
		EventCount:     len(events),
		ErrorCount:     int(errorCount),
		ProcessedCount: len(items) - int(errorCount),
		CancelledCount: int(cancelled),
		Duration:       p.now().Sub(start),
	}

	p.log.Info().
		Int("processed", result.ProcessedCount).
		Int("errors", result.ErrorCount).
		Int("cancelled", result.CancelledCount).
		Dur("duration", result.Duration).
		Msg("Batch content generation completed")

	return result
}

// Generate produces the content item for a single event and angle
func (p *Processor) Generate(ctx context.Context, e *models.EnrichedEvent, angle models.Angle) *models.ContentItem {
	out := p.gen.CreateSocialPost(ctx, e, angle, p.platform, p.overrides)

	if out.IsError {
		p.metrics.ContentError(out.ErrorKind)
		p.log.Warn().
			Str("event_id", e.EventID).
			Str("angle", string(angle)).
			Str("kind", out.ErrorKind).
			Msg("Generation failed")
	} else {
		p.metrics.ContentGenerated(string(angle))
		p.log.Debug().
			Str("event_id", e.EventID).
			Str("angle", string(angle)).
			Msg("Generated content")
	}

	return &models.ContentItem{
		EventID:          e.EventID,
		ArtistName:       e.DisplayName(),
		EventName:        e.EventName,
		VenueLocation:    e.Location(),
		Genre:            e.Genre,
		Rank:             e.Rank,
		ContentAngle:     angle,
		Platform:         out.Platform,
		VisualText:       out.VisualText,
		Caption:          out.Caption,
		Priority:         priority.Score(e, angle),
		DataQualityScore: e.DataCompleteness.CompletenessScore,
		EventMetrics:     models.MetricsFor(e),
		IsError:          out.IsError,
		ErrorKind:        out.ErrorKind,
		GeneratedAt:      p.now().UTC(),
	}
}

// SortByPriority orders items by priority, highest first, keeping ties stable
func SortByPriority(items []*models.ContentItem) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Priority > items[b].Priority
	})
}
