package models

import (
	"fmt"
	"time"
)

// Unranked is the market-position rank used when an event has no ranking row
const Unranked = 999

// EnrichedEvent is one event assembled from the four warehouse views
type EnrichedEvent struct {
	// Identity
	EventID           string `json:"event_id"`
	EventName         string `json:"event_name"`
	ArtistName        string `json:"artist_name"` // raw category name
	ArtistDisplayName string `json:"classified_artist_name"`
	Genre             string `json:"genre"`
	Subgenre          string `json:"subgenre"`
	VenueCity         string `json:"venue_city"`
	VenueCountry      string `json:"venue_country"`
	EventDate         string `json:"event_date"`
	Rank              int    `json:"rank"`

	// Performance metrics
	TotalGMS         float64 `json:"total_gms"`
	Recent7dGMS      float64 `json:"recent_7d_gms"`
	TotalTickets     int     `json:"total_tickets"`
	AvgTicketCost    float64 `json:"avg_ticket_cost"`
	GMSPerTicket     float64 `json:"gms_per_ticket"`
	InternationalPct float64 `json:"international_pct"`
	SalesWindowDays  int     `json:"sales_window_days"`

	CareerContext      CareerContext      `json:"career_context"`
	TourContext        TourContext        `json:"tour_context"`
	GenreContext       GenreContext       `json:"genre_context"`
	TrendInsights      TrendInsights      `json:"trend_insights"`
	GeographicInsights GeographicInsights `json:"geographic_insights"`
	PricingInsights    PricingInsights    `json:"pricing_insights"`
	MarketPosition     MarketPosition     `json:"market_position"`
	DataCompleteness   DataCompleteness   `json:"data_completeness"`

	DataTimestamp time.Time `json:"data_timestamp"`
}

// CareerContext compares the event against the artist's history
type CareerContext struct {
	VsCareerAvgMultiple float64 `json:"vs_career_avg_multiple"`
	VsCareerBestRatio   float64 `json:"vs_career_best_ratio"`
	CareerTotalEvents   int     `json:"career_total_events"`
	CareerFirstYear     int     `json:"career_first_year"`
	CareerLastYear      int     `json:"career_last_year"`
	CareerTotalGMS      float64 `json:"career_total_gms"`
	CareerBestEventGMS  float64 `json:"career_best_event_gms"`
}

// TourContext compares the event against the rest of its tour
type TourContext struct {
	TourName          string  `json:"tour_name,omitempty"`
	VsTourAvgMultiple float64 `json:"vs_tour_avg_multiple"`
	TourTotalEvents   int     `json:"tour_total_events"`
	TourTotalGMS      float64 `json:"tour_total_gms"`
}

// HasTour reports whether the event belongs to a named tour
func (t TourContext) HasTour() bool {
	return t.TourName != ""
}

// GenreContext compares the event against its genre
type GenreContext struct {
	VsGenreAvgMultiple    float64 `json:"vs_genre_avg_multiple"`
	GenrePercentileBucket string  `json:"genre_percentile_bucket"`
	VsYTDAvgMultiple      float64 `json:"vs_ytd_avg_multiple"`
}

// TrendInsights holds recent momentum signals
type TrendInsights struct {
	GMSMultiple          float64 `json:"gms_multiple"`
	IsGMSSpike           bool    `json:"is_gms_spike"`
	PerformanceCategory  string  `json:"performance_category"`
	PriceAppreciationPct float64 `json:"price_appreciation_pct"`
}

// BuyerCountry is one of the top buyer countries for an event
type BuyerCountry struct {
	Country    string  `json:"country"`
	Percentage float64 `json:"percentage"`
}

// GeographicInsights describes where buyers come from
type GeographicInsights struct {
	TopBuyerCountries    []BuyerCountry `json:"top_buyer_countries"`
	UniqueBuyerCountries int            `json:"unique_buyer_countries"`
}

// PricingInsights holds ticket cost history
type PricingInsights struct {
	LifetimeAvgCost float64 `json:"lifetime_avg_cost"`
	MinTicketCost   float64 `json:"min_ticket_cost"`
	MaxTicketCost   float64 `json:"max_ticket_cost"`
	Recent7dAvgCost float64 `json:"recent_7d_avg_cost"`
	Prior23dAvgCost float64 `json:"prior_23d_avg_cost"`
}

// MarketPosition holds year-to-date rankings and market share
type MarketPosition struct {
	YTDOverallRank       int     `json:"ytd_overall_rank"`
	YTDGenreRank         int     `json:"ytd_genre_rank"`
	YTDOverallTier       string  `json:"ytd_overall_tier"`
	YTDGenreTier         string  `json:"ytd_genre_tier"`
	Last7dMarketSharePct float64 `json:"last_7d_market_share_pct"`
	YTDMarketSharePct    float64 `json:"ytd_market_share_pct"`
	PremiumMultiple      float64 `json:"premium_multiple"`
}

// DataCompleteness records which optional views contributed to the event
type DataCompleteness struct {
	HasHistoricalContext bool    `json:"has_historical_context"`
	HasTrendAnalysis     bool    `json:"has_trend_analysis"`
	HasMarketPositioning bool    `json:"has_market_positioning"`
	CompletenessScore    float64 `json:"completeness_score"`
}

// Location renders "city, country"
func (e *EnrichedEvent) Location() string {
	return fmt.Sprintf("%s, %s", e.VenueCity, e.VenueCountry)
}

// DisplayName returns the best available artist name
func (e *EnrichedEvent) DisplayName() string {
	if e.ArtistDisplayName != "" {
		return e.ArtistDisplayName
	}
	if e.ArtistName != "" {
		return e.ArtistName
	}
	return "Unknown"
}
