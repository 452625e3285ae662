package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventMetrics is the snapshot of event figures carried alongside generated content
type EventMetrics struct {
	Rank                int     `json:"rank"`
	InternationalPct    float64 `json:"international_pct"`
	VsCareerAvgMultiple float64 `json:"vs_career_avg_multiple"`
	GenreRank           int     `json:"genre_rank"`
	PerformanceCategory string  `json:"performance_category"`
	GenrePercentile     string  `json:"genre_percentile"`
	Recent7dGMS         float64 `json:"recent_7d_gms"`
	VenueCity           string  `json:"venue_city"`
	VenueCountry        string  `json:"venue_country"`
}

func (m EventMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *EventMetrics) Scan(value interface{}) error {
	if value == nil {
		*m = EventMetrics{}
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, m)
}

// MetricsFor snapshots the figures of e that content consumers display
func MetricsFor(e *EnrichedEvent) EventMetrics {
	return EventMetrics{
		Rank:                e.Rank,
		InternationalPct:    e.InternationalPct,
		VsCareerAvgMultiple: e.CareerContext.VsCareerAvgMultiple,
		GenreRank:           e.MarketPosition.YTDGenreRank,
		PerformanceCategory: e.TrendInsights.PerformanceCategory,
		GenrePercentile:     e.GenreContext.GenrePercentileBucket,
		Recent7dGMS:         e.Recent7dGMS,
		VenueCity:           e.VenueCity,
		VenueCountry:        e.VenueCountry,
	}
}

// ContentItem is one generated visual text + caption pair for an event and angle
type ContentItem struct {
	ID               uint         `gorm:"primaryKey" json:"-"`
	RunID            string       `gorm:"uniqueIndex:idx_run_content" json:"run_id,omitempty"`
	EventID          string       `gorm:"uniqueIndex:idx_run_content;not null" json:"event_id"`
	ArtistName       string       `json:"artist_name"`
	EventName        string       `json:"event_name"`
	VenueLocation    string       `json:"venue_location"`
	Genre            string       `json:"genre"`
	Rank             int          `json:"rank"`
	ContentAngle     Angle        `gorm:"uniqueIndex:idx_run_content" json:"content_angle"`
	Platform         Platform     `json:"platform"`
	VisualText       string       `gorm:"type:text" json:"visual_text"`
	Caption          string       `gorm:"type:text" json:"caption"`
	Priority         int          `gorm:"index" json:"priority"`
	DataQualityScore float64      `json:"data_quality_score"`
	EventMetrics     EventMetrics `gorm:"type:json" json:"event_metrics"`
	IsError          bool         `json:"is_error,omitempty"`
	ErrorKind        string       `json:"error_kind,omitempty"`
	GeneratedAt      time.Time    `json:"generated_at"`
	CreatedAt        time.Time    `gorm:"autoCreateTime" json:"-"`
}

// ContentID is the stable identifier "<event_id>_<angle>"
func (c *ContentItem) ContentID() string {
	return fmt.Sprintf("%s_%s", c.EventID, c.ContentAngle)
}

// Publishable reports whether the item can be scheduled or pushed downstream
func (c *ContentItem) Publishable() bool {
	return !c.IsError
}
