package angles

import (
	"github.com/event-content-agent/internal/models"
)

// Thresholds for the angle rules. Percentages are on the 0-100 scale.
const (
	MajorSpikeMultiple       = 5.0
	SignificantSpikeMultiple = 3.0
	NotableMultiple          = 2.0

	InternationalPhenomenonPct = 40.0
	InternationalAppealPct     = 25.0

	GenreLeaderRank  = 3
	TopPerformerRank = 10

	PricingSurgePct    = 30.0
	DemandIndicatorPct = 15.0

	TourStandoutMultiple = 1.5

	TopPerformanceRank = 5
)

var highImpact = map[models.Angle]bool{
	models.AngleMajorSpike:              true,
	models.AngleInternationalPhenomenon: true,
	models.AngleGenreLeader:             true,
	models.AnglePricingSurge:            true,
}

// IsHighImpact reports whether angle earns the priority bonus
func IsHighImpact(angle models.Angle) bool {
	return highImpact[angle]
}

// Classify returns every angle e qualifies for, in rule order:
// career, international, genre, price, tour. An event matching none of
// them gets exactly one fallback angle.
func Classify(e *models.EnrichedEvent) []models.Angle {
	var out []models.Angle

	switch career := e.CareerContext.VsCareerAvgMultiple; {
	case career >= MajorSpikeMultiple:
		out = append(out, models.AngleMajorSpike)
	case career >= SignificantSpikeMultiple:
		out = append(out, models.AngleSignificantSpike)
	case career >= NotableMultiple:
		out = append(out, models.AngleNotablePerformance)
	}

	switch intl := e.InternationalPct; {
	case intl > InternationalPhenomenonPct:
		out = append(out, models.AngleInternationalPhenomenon)
	case intl > InternationalAppealPct:
		out = append(out, models.AngleInternationalAppeal)
	}

	switch rank := e.MarketPosition.YTDGenreRank; {
	case rank <= GenreLeaderRank:
		out = append(out, models.AngleGenreLeader)
	case rank <= TopPerformerRank:
		out = append(out, models.AngleTopPerformer)
	}

	switch price := e.TrendInsights.PriceAppreciationPct; {
	case price > PricingSurgePct:
		out = append(out, models.AnglePricingSurge)
	case price > DemandIndicatorPct:
		out = append(out, models.AngleDemandIndicator)
	}

	if e.TourContext.HasTour() && e.TourContext.VsTourAvgMultiple > TourStandoutMultiple {
		out = append(out, models.AngleTourStandout)
	}

	if len(out) == 0 {
		if e.Rank <= TopPerformanceRank {
			out = append(out, models.AngleTopPerformance)
		} else {
			out = append(out, models.AngleTrendingEvent)
		}
	}
	return out
}

// Limit keeps the first max angles; max <= 0 keeps all
func Limit(angles []models.Angle, max int) []models.Angle {
	if max <= 0 || len(angles) <= max {
		return angles
	}
	return angles[:max]
}

// Count tallies angle occurrences across events (dry-run summary)
func Count(events []*models.EnrichedEvent, maxPerEvent int) map[models.Angle]int {
	counts := make(map[models.Angle]int)
	for _, e := range events {
		for _, a := range Limit(Classify(e), maxPerEvent) {
			counts[a]++
		}
	}
	return counts
}
