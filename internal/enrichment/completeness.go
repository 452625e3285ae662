package enrichment

import (
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/warehouse"
)

// Completeness scores how many of the three side views contributed
func Completeness(hist, trend, market warehouse.RawRow) models.DataCompleteness {
	dc := models.DataCompleteness{
		HasHistoricalContext: hist != nil,
		HasTrendAnalysis:     trend != nil,
		HasMarketPositioning: market != nil,
	}
	present := 0
	for _, ok := range []bool{dc.HasHistoricalContext, dc.HasTrendAnalysis, dc.HasMarketPositioning} {
		if ok {
			present++
		}
	}
	dc.CompletenessScore = float64(present) / 3
	return dc
}
