package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/models"
)

const (
	exportVersion = "1.0"
	exportSource  = "Event Content Agent"
)

// Metadata is the batch metadata plus export bookkeeping
type Metadata struct {
	batch.Metadata
	ExportedAt    time.Time `json:"exported_at"`
	Platforms     []string  `json:"platforms"`
	ContentAngles []string  `json:"content_angles"`
	ExportVersion string    `json:"export_version"`
	Source        string    `json:"source"`
}

// Document is the JSON export layout
type Document struct {
	Metadata Metadata              `json:"metadata"`
	Content  []*models.ContentItem `json:"content"`
}

// NewDocument wraps items, highest priority first, with md
func NewDocument(items []*models.ContentItem, md batch.Metadata, now time.Time) *Document {
	ordered := append([]*models.ContentItem(nil), items...)
	batch.SortByPriority(ordered)

	platforms := map[string]bool{}
	angles := map[string]bool{}
	for _, item := range ordered {
		platforms[string(item.Platform)] = true
		angles[string(item.ContentAngle)] = true
	}

	return &Document{
		Metadata: Metadata{
			Metadata:      md,
			ExportedAt:    now,
			Platforms:     sortedKeys(platforms),
			ContentAngles: sortedKeys(angles),
			ExportVersion: exportVersion,
			Source:        exportSource,
		},
		Content: ordered,
	}
}

// WriteJSON encodes doc as indented JSON
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json export: %w", err)
	}
	return nil
}

// ReadJSON decodes a JSON export
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode json export: %w", err)
	}
	return &doc, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
