package enrichment

import (
	"errors"
	"time"

	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
)

// SkippedRow records a base row that was dropped during extraction
type SkippedRow struct {
	EventID string `json:"event_id"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

// Result is the outcome of processing one batch of tables
type Result struct {
	Events     []*models.EnrichedEvent
	Skipped    []SkippedRow
	Duplicates map[string]int // table -> number of event IDs with more than one match
}

// Processor turns raw warehouse tables into enriched events
type Processor struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithMetrics records loaded, skipped and duplicate counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a new enrichment processor
func NewProcessor(log *logger.Logger, opts ...Option) *Processor {
	p := &Processor{
		log: log.WithComponent("enrichment"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process joins and extracts every base row. Rows with a missing mandatory
// field are skipped and counted; only an empty base table is an error.
func (p *Processor) Process(tables *warehouse.Tables) (*Result, error) {
	if tables == nil || len(tables.BaseEvents) == 0 {
		return nil, warehouse.ErrNoBaseEvents
	}

	joiner := NewJoiner(tables)
	stamp := p.now().UTC()
	result := &Result{Duplicates: make(map[string]int)}

	for _, base := range tables.BaseEvents {
		match := joiner.Match(base)
		for table, n := range match.Duplicates {
			result.Duplicates[table]++
			p.metrics.DuplicateKey(table)
			p.log.Warn().
				Str("event_id", eventKey(base)).
				Str("table", table).
				Int("matches", n).
				Msg("Duplicate event ID in side view, using first row")
		}

		event, err := Extract(base, match.Historical, match.Trend, match.Market)
		if err != nil {
			skipped := SkippedRow{EventID: eventKey(base), Reason: err.Error()}
			var mfe *MissingFieldError
			if errors.As(err, &mfe) {
				skipped.Field = mfe.Field
			}
			result.Skipped = append(result.Skipped, skipped)
			p.metrics.EventSkipped()
			p.log.Warn().Err(err).Str("event_id", skipped.EventID).Msg("Skipping base row")
			continue
		}
		event.DataTimestamp = stamp
		result.Events = append(result.Events, event)
	}

	p.metrics.EventsLoaded(len(result.Events))
	p.log.Info().
		Int("events", len(result.Events)).
		Int("skipped", len(result.Skipped)).
		Msg("Processed warehouse rows")

	return result, nil
}

// Top returns at most n events; n <= 0 returns all of them
func Top(events []*models.EnrichedEvent, n int) []*models.EnrichedEvent {
	if n <= 0 || n >= len(events) {
		return events
	}
	return events[:n]
}
