// Package session holds the operator's working state between dashboard calls:
// loaded warehouse data, the event selection, prompt overrides, generated
// content and export history.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/enrichment"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/warehouse"
)

// Step is the operator's position in the load -> export flow
type Step string

const (
	StepLoad      Step = "load"
	StepSelect    Step = "select"
	StepCustomize Step = "customize"
	StepGenerate  Step = "generate"
	StepExport    Step = "export"
)

// ExportEntry records one export made from the session
type ExportEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
	Formats   []string  `json:"formats"`
	ItemCount int       `json:"item_count"`
}

// Status is a point-in-time summary of the session
type Status struct {
	DataLoaded       bool      `json:"data_loaded"`
	CurrentStep      Step      `json:"current_step"`
	EventCount       int       `json:"event_count"`
	SelectedCount    int       `json:"selected_count"`
	ContentGenerated bool      `json:"content_generated"`
	ContentCount     int       `json:"content_count"`
	RunID            string    `json:"run_id,omitempty"`
	HasCustomPrompts bool      `json:"has_custom_prompts"`
	LastError        string    `json:"last_error,omitempty"`
	Exports          int       `json:"exports"`
	LoadedAt         time.Time `json:"loaded_at,omitempty"`
}

// Session is safe for concurrent use. Accessors return copies of the slices
// they hold so callers can't mutate session state.
type Session struct {
	mu sync.RWMutex

	dataLoaded       bool
	loadedAt         time.Time
	rawTables        *warehouse.Tables
	events           []*models.EnrichedEvent
	selected         []*models.EnrichedEvent
	content          []*models.ContentItem
	runID            string
	customPrompts    ai.PromptOverrides
	contentGenerated bool
	currentStep      Step
	lastError        string
	exportHistory    []ExportEntry
}

// New creates an empty session positioned at the load step
func New() *Session {
	return &Session{currentStep: StepLoad}
}

// Reset clears every field in one critical section
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataLoaded = false
	s.loadedAt = time.Time{}
	s.rawTables = nil
	s.events = nil
	s.selected = nil
	s.content = nil
	s.runID = ""
	s.customPrompts = ai.PromptOverrides{}
	s.contentGenerated = false
	s.currentStep = StepLoad
	s.lastError = ""
	s.exportHistory = nil
}

// LoadData stores freshly queried tables and their enriched events. Any
// previous selection and content is dropped.
func (s *Session) LoadData(tables *warehouse.Tables, events []*models.EnrichedEvent, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataLoaded = true
	s.loadedAt = at
	s.rawTables = tables
	s.events = append([]*models.EnrichedEvent(nil), events...)
	s.selected = nil
	s.content = nil
	s.runID = ""
	s.contentGenerated = false
	s.lastError = ""
	s.currentStep = StepSelect
}

// DataLoaded reports whether warehouse data has been loaded
func (s *Session) DataLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataLoaded
}

// RawTables returns the tables the events were built from
func (s *Session) RawTables() *warehouse.Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawTables
}

// Events returns the structured events in rank order
func (s *Session) Events() []*models.EnrichedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.EnrichedEvent(nil), s.events...)
}

// SelectEvents selects events by id, keeping the order of ids. Unknown ids
// are an error and leave the previous selection untouched.
func (s *Session) SelectEvents(ids []string) ([]*models.EnrichedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dataLoaded {
		return nil, ErrNoData
	}

	byID := make(map[string]*models.EnrichedEvent, len(s.events))
	for _, e := range s.events {
		byID[e.EventID] = e
	}

	seen := make(map[string]bool, len(ids))
	selected := make([]*models.EnrichedEvent, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown event id %q", id)
		}
		seen[id] = true
		selected = append(selected, e)
	}

	s.selected = selected
	s.currentStep = StepCustomize
	return append([]*models.EnrichedEvent(nil), selected...), nil
}

// SelectTop selects the n best-ranked events
func (s *Session) SelectTop(n int) ([]*models.EnrichedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dataLoaded {
		return nil, ErrNoData
	}

	s.selected = append([]*models.EnrichedEvent(nil), enrichment.Top(s.events, n)...)
	s.currentStep = StepCustomize
	return append([]*models.EnrichedEvent(nil), s.selected...), nil
}

// Selected returns the current event selection
func (s *Session) Selected() []*models.EnrichedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.EnrichedEvent(nil), s.selected...)
}

// SetCustomPrompts replaces the prompt overrides
func (s *Session) SetCustomPrompts(o ai.PromptOverrides) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customPrompts = o
	if s.dataLoaded && len(s.selected) > 0 {
		s.currentStep = StepGenerate
	}
}

// CustomPrompts returns a copy of the prompt overrides
func (s *Session) CustomPrompts() ai.PromptOverrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customPrompts
}

// SetContent stores the content produced by a generation run
func (s *Session) SetContent(runID string, items []*models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runID = runID
	s.content = append([]*models.ContentItem(nil), items...)
	s.contentGenerated = true
	s.lastError = ""
	s.currentStep = StepExport
}

// ReplaceContent swaps the item with the same content id for item
func (s *Session) ReplaceContent(item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.content {
		if existing.ContentID() == item.ContentID() {
			s.content[i] = item
			return nil
		}
	}
	return fmt.Errorf("content %q: %w", item.ContentID(), ErrContentNotFound)
}

// Content returns the generated content
func (s *Session) Content() []*models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.ContentItem(nil), s.content...)
}

// FindContent looks up generated content by its content id
func (s *Session) FindContent(contentID string) (*models.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.content {
		if item.ContentID() == contentID {
			return item, true
		}
	}
	return nil, false
}

// FindEvent looks up a loaded event by id
func (s *Session) FindEvent(eventID string) (*models.EnrichedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.EventID == eventID {
			return e, true
		}
	}
	return nil, false
}

// RunID returns the id of the run that produced the current content
func (s *Session) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// ContentGenerated reports whether generation has completed in this session
func (s *Session) ContentGenerated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentGenerated
}

// CurrentStep returns the operator's current step
func (s *Session) CurrentStep() Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentStep
}

// SetError records the last failure; nil clears it
func (s *Session) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.lastError = ""
		return
	}
	s.lastError = err.Error()
}

// LastError returns the last recorded failure
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// RecordExport appends to the export history
func (s *Session) RecordExport(entry ExportEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Files = append([]string(nil), entry.Files...)
	entry.Formats = append([]string(nil), entry.Formats...)
	s.exportHistory = append(s.exportHistory, entry)
}

// ExportHistory returns exports newest first
func (s *Session) ExportHistory() []ExportEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ExportEntry, len(s.exportHistory))
	for i, e := range s.exportHistory {
		out[len(out)-1-i] = e
	}
	return out
}

// Status summarizes the session
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		DataLoaded:       s.dataLoaded,
		CurrentStep:      s.currentStep,
		EventCount:       len(s.events),
		SelectedCount:    len(s.selected),
		ContentGenerated: s.contentGenerated,
		ContentCount:     len(s.content),
		RunID:            s.runID,
		HasCustomPrompts: !s.customPrompts.IsZero(),
		LastError:        s.lastError,
		Exports:          len(s.exportHistory),
		LoadedAt:         s.loadedAt,
	}
}
