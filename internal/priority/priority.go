package priority

import (
	"github.com/event-content-agent/internal/angles"
	"github.com/event-content-agent/internal/models"
)

const (
	Base    = 5
	Max     = 10
	Min     = 1
	HighBar = 8 // items at or above this count as high priority
)

// Score rates an event/angle pair from 1 to 10
func Score(e *models.EnrichedEvent, angle models.Angle) int {
	score := Base

	switch {
	case e.Rank <= 3:
		score += 3
	case e.Rank <= 5:
		score += 2
	case e.Rank <= 10:
		score++
	}

	if angles.IsHighImpact(angle) {
		score += 2
	}

	if e.DataCompleteness.CompletenessScore >= 0.8 {
		score++
	}

	switch career := e.CareerContext.VsCareerAvgMultiple; {
	case career >= 5:
		score += 2
	case career >= 3:
		score++
	}

	if score > Max {
		return Max
	}
	if score < Min {
		return Min
	}
	return score
}
