package batch

import (
	"math"
	"sort"
	"time"

	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/priority"
)

// Metadata describes a batch of generated content
type Metadata struct {
	GenerationTimestamp     time.Time      `json:"generation_timestamp"`
	BatchSummary            BatchSummary   `json:"batch_summary"`
	QualityMetrics          QualityMetrics `json:"quality_metrics"`
	ContentDistribution     Distribution   `json:"content_distribution"`
	TopEventsByGMS          []TopEvent     `json:"top_events_by_gms"`
	RecommendedPostingOrder []string       `json:"recommended_posting_order"`
}

type BatchSummary struct {
	TotalContentItems  int    `json:"total_content_items"`
	UniqueEvents       int    `json:"unique_events"`
	UniqueArtists      int    `json:"unique_artists"`
	ErrorItems         int    `json:"error_items"`
	ProcessingDuration string `json:"processing_duration"`
}

type QualityMetrics struct {
	AverageContentPriority  float64 `json:"average_content_priority"`
	AverageDataQualityScore float64 `json:"average_data_quality_score"`
	HighPriorityItems       int     `json:"high_priority_items"`
	HighPriorityPercentage  float64 `json:"high_priority_percentage"`
}

type Distribution struct {
	ByAngle    map[string]int `json:"by_angle"`
	ByPriority map[int]int    `json:"by_priority"`
	ByGenre    map[string]int `json:"by_genre"`
}

type TopEvent struct {
	EventID string  `json:"event_id"`
	Artist  string  `json:"artist"`
	Event   string  `json:"event"`
	GMS     float64 `json:"gms"`
}

const (
	topEventsLimit    = 5
	postingOrderLimit = 10
)

// BuildMetadata summarizes items. Error items are counted but excluded from
// every numeric aggregation and distribution.
func BuildMetadata(items []*models.ContentItem, startedAt, now time.Time) Metadata {
	md := Metadata{
		GenerationTimestamp: now,
		BatchSummary: BatchSummary{
			TotalContentItems:  len(items),
			ProcessingDuration: now.Sub(startedAt).String(),
		},
		ContentDistribution: Distribution{
			ByAngle:    map[string]int{},
			ByPriority: map[int]int{},
			ByGenre:    map[string]int{},
		},
		TopEventsByGMS:          []TopEvent{},
		RecommendedPostingOrder: []string{},
	}

	events := map[string]bool{}
	artists := map[string]bool{}
	var valid []*models.ContentItem
	for _, item := range items {
		events[item.EventID] = true
		artists[item.ArtistName] = true
		if item.IsError {
			md.BatchSummary.ErrorItems++
			continue
		}
		valid = append(valid, item)
	}
	md.BatchSummary.UniqueEvents = len(events)
	md.BatchSummary.UniqueArtists = len(artists)

	if len(valid) == 0 {
		return md
	}

	var prioritySum, qualitySum float64
	for _, item := range valid {
		prioritySum += float64(item.Priority)
		qualitySum += item.DataQualityScore
		if item.Priority >= priority.HighBar {
			md.QualityMetrics.HighPriorityItems++
		}
		md.ContentDistribution.ByAngle[string(item.ContentAngle)]++
		md.ContentDistribution.ByPriority[item.Priority]++
		md.ContentDistribution.ByGenre[item.Genre]++
	}
	n := float64(len(valid))
	md.QualityMetrics.AverageContentPriority = round(prioritySum/n, 2)
	md.QualityMetrics.AverageDataQualityScore = round(qualitySum/n, 2)
	md.QualityMetrics.HighPriorityPercentage = round(float64(md.QualityMetrics.HighPriorityItems)/n*100, 1)

	md.TopEventsByGMS = topEventsByGMS(valid)

	ordered := append([]*models.ContentItem(nil), valid...)
	SortByPriority(ordered)
	for i, item := range ordered {
		if i == postingOrderLimit {
			break
		}
		md.RecommendedPostingOrder = append(md.RecommendedPostingOrder, item.ContentID())
	}

	return md
}

// topEventsByGMS returns one entry per event, highest recent sales first
func topEventsByGMS(items []*models.ContentItem) []TopEvent {
	seen := map[string]bool{}
	var out []TopEvent
	for _, item := range items {
		if seen[item.EventID] {
			continue
		}
		seen[item.EventID] = true
		out = append(out, TopEvent{
			EventID: item.EventID,
			Artist:  item.ArtistName,
			Event:   item.EventName,
			GMS:     item.EventMetrics.Recent7dGMS,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].GMS > out[b].GMS })
	if len(out) > topEventsLimit {
		out = out[:topEventsLimit]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
