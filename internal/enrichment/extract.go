package enrichment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/warehouse"
)

// ErrMissingField is wrapped by every MissingFieldError
var ErrMissingField = errors.New("missing mandatory field")

// MissingFieldError reports a base row that cannot become an event
type MissingFieldError struct {
	EventID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("base row: %s %s", ErrMissingField, e.Field)
	}
	return fmt.Sprintf("event %s: %s %s", e.EventID, ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

var mandatoryText = []string{
	"EVENT_ID",
	"EVENT_NAME",
	"VENUE_CITY",
	"VENUE_COUNTRY_NAME",
	"EVENT_PARENT_CATEGORY_NAME",
}

const maxBuyerCountries = 3

// Extract builds an enriched event from a base row and its (possibly nil) side rows.
// DataTimestamp is left zero for the caller to stamp.
func Extract(base, hist, trend, market warehouse.RawRow) (*models.EnrichedEvent, error) {
	id := strings.TrimSpace(base.String("EVENT_ID", ""))
	for _, col := range mandatoryText {
		if strings.TrimSpace(base.String(col, "")) == "" {
			return nil, &MissingFieldError{EventID: id, Field: col}
		}
	}
	rank := base.Int("RECENT_GMS_RANK", 0)
	if rank < 1 {
		return nil, &MissingFieldError{EventID: id, Field: "RECENT_GMS_RANK"}
	}

	e := &models.EnrichedEvent{
		EventID:           id,
		EventName:         base.String("EVENT_NAME", ""),
		ArtistName:        base.String("EVENT_CATEGORY_NAME", "Unknown"),
		ArtistDisplayName: displayName(base),
		Genre:             base.String("EVENT_PARENT_CATEGORY_NAME", ""),
		Subgenre:          base.String("SUBGENRE", ""),
		VenueCity:         base.String("VENUE_CITY", ""),
		VenueCountry:      base.String("VENUE_COUNTRY_NAME", ""),
		EventDate:         base.String("EVENT_DATE", ""),
		Rank:              rank,

		TotalGMS:         base.Float("TOTAL_GMS", 0),
		Recent7dGMS:      base.Float("RECENT_7D_GMS", 0),
		TotalTickets:     base.Int("TOTAL_TICKETS_SOLD", 0),
		AvgTicketCost:    base.Float("AVG_TICKET_COST", 0),
		GMSPerTicket:     base.Float("GMS_PER_TICKET", 0),
		InternationalPct: pct(base, "INTERNATIONAL_GMS_PCT"),
		SalesWindowDays:  base.Int("TOTAL_SALES_WINDOW_DAYS", 0),

		CareerContext: models.CareerContext{
			VsCareerAvgMultiple: hist.Float("VS_CAREER_AVG_MULTIPLE", 1),
			VsCareerBestRatio:   hist.Float("VS_CAREER_BEST_RATIO", 0),
			CareerTotalEvents:   hist.Int("CAREER_TOTAL_EVENTS", 0),
			CareerFirstYear:     hist.Int("CAREER_FIRST_YEAR", 0),
			CareerLastYear:      hist.Int("CAREER_LAST_YEAR", 0),
			CareerTotalGMS:      hist.Float("CAREER_TOTAL_GMS", 0),
			CareerBestEventGMS:  hist.Float("CAREER_BEST_EVENT_GMS", 0),
		},
		TourContext: models.TourContext{
			TourName:          strings.TrimSpace(hist.String("TOUR_NAME", "")),
			VsTourAvgMultiple: hist.Float("VS_TOUR_AVG_MULTIPLE", 1),
			TourTotalEvents:   hist.Int("TOUR_TOTAL_EVENTS", 0),
			TourTotalGMS:      hist.Float("TOUR_TOTAL_GMS", 0),
		},
		GenreContext: models.GenreContext{
			VsGenreAvgMultiple:    hist.Float("VS_GENRE_AVG_MULTIPLE", 1),
			GenrePercentileBucket: hist.String("GENRE_PERCENTILE_BUCKET", "Unknown"),
			VsYTDAvgMultiple:      hist.Float("VS_YTD_AVG_MULTIPLE", 1),
		},
		TrendInsights: models.TrendInsights{
			GMSMultiple:          trend.Float("GMS_MULTIPLE", 1),
			IsGMSSpike:           trend.Bool("IS_GMS_SPIKE", false),
			PerformanceCategory:  trend.String("PERFORMANCE_CATEGORY", "Normal"),
			PriceAppreciationPct: pct(trend, "PRICE_APPRECIATION_PCT"),
		},
		GeographicInsights: models.GeographicInsights{
			TopBuyerCountries:    buyerCountries(trend),
			UniqueBuyerCountries: trend.Int("UNIQUE_BUYER_COUNTRIES", 0),
		},
		PricingInsights: models.PricingInsights{
			LifetimeAvgCost: trend.Float("LIFETIME_AVG_TICKET_COST", 0),
			MinTicketCost:   trend.Float("MIN_TICKET_COST", 0),
			MaxTicketCost:   trend.Float("MAX_TICKET_COST", 0),
			Recent7dAvgCost: trend.Float("RECENT_7D_AVG_COST", 0),
			Prior23dAvgCost: trend.Float("PRIOR_23D_AVG_COST", 0),
		},
		MarketPosition: models.MarketPosition{
			YTDOverallRank:       market.Int("YTD_OVERALL_RANK", models.Unranked),
			YTDGenreRank:         market.Int("YTD_GENRE_RANK", models.Unranked),
			YTDOverallTier:       market.String("YTD_OVERALL_TIER", "Unknown"),
			YTDGenreTier:         market.String("YTD_GENRE_TIER", "Unknown"),
			Last7dMarketSharePct: pct(market, "LAST_7D_MARKET_SHARE_PCT"),
			YTDMarketSharePct:    pct(market, "YTD_MARKET_SHARE_PCT"),
			PremiumMultiple:      market.Float("PREMIUM_MULTIPLE", 1),
		},
		DataCompleteness: Completeness(hist, trend, market),
	}
	return e, nil
}

// pct converts a 0-1 fraction column to 0-100, clamped to that range
func pct(row warehouse.RawRow, col string) float64 {
	v := row.Float(col, 0) * 100
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func displayName(base warehouse.RawRow) string {
	classified := strings.TrimSpace(base.String("CLASSIFIED_ARTIST_NAME", ""))
	switch classified {
	case "", "None", "nan":
	default:
		return classified
	}
	if category := strings.TrimSpace(base.String("EVENT_CATEGORY_NAME", "")); category != "" {
		return category
	}
	return "Unknown"
}

func buyerCountries(trend warehouse.RawRow) []models.BuyerCountry {
	var out []models.BuyerCountry
	for i := 1; i <= maxBuyerCountries; i++ {
		nameCol := fmt.Sprintf("TOP_BUYER_COUNTRY_%d", i)
		pctCol := nameCol + "_PCT"
		name := strings.TrimSpace(trend.String(nameCol, ""))
		if name == "" || !trend.Has(pctCol) {
			continue
		}
		out = append(out, models.BuyerCountry{Country: name, Percentage: pct(trend, pctCol)})
	}
	return out
}
