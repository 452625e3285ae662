package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/event-content-agent/internal/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name         string
		rank         int
		completeness float64
		career       float64
		angle        models.Angle
		want         int
	}{
		{"base only", 20, 0, 1, models.AngleTrendingEvent, 5},
		{"rank 3", 3, 0, 1, models.AngleTrendingEvent, 8},
		{"rank 5", 5, 0, 1, models.AngleTrendingEvent, 7},
		{"rank 10", 10, 0, 1, models.AngleTrendingEvent, 6},
		{"high impact angle", 20, 0, 1, models.AngleGenreLeader, 7},
		{"two thirds complete gets no bonus", 20, 2.0 / 3, 1, models.AngleTrendingEvent, 5},
		{"fully complete", 20, 1, 1, models.AngleTrendingEvent, 6},
		{"career 3x", 20, 0, 3, models.AngleSignificantSpike, 6},
		{"capped at 10", 1, 1, 6, models.AngleMajorSpike, 10},
		{"rank 1 major spike partial data", 1, 1.0 / 3, 5.5, models.AngleMajorSpike, 10},
		{"rank 7 international appeal", 7, 1, 1, models.AngleInternationalAppeal, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &models.EnrichedEvent{
				Rank:             tt.rank,
				CareerContext:    models.CareerContext{VsCareerAvgMultiple: tt.career},
				DataCompleteness: models.DataCompleteness{CompletenessScore: tt.completeness},
			}
			assert.Equal(t, tt.want, Score(e, tt.angle))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	for rank := 1; rank <= 30; rank++ {
		for _, a := range models.AllAngles {
			e := &models.EnrichedEvent{
				Rank:             rank,
				CareerContext:    models.CareerContext{VsCareerAvgMultiple: float64(rank % 7)},
				DataCompleteness: models.DataCompleteness{CompletenessScore: 1},
			}
			s := Score(e, a)
			assert.GreaterOrEqual(t, s, Min)
			assert.LessOrEqual(t, s, Max)
		}
	}
}

func TestScore_Monotonic(t *testing.T) {
	for _, a := range models.AllAngles {
		for _, completeness := range []float64{0, 1} {
			t.Run(string(a), func(t *testing.T) {
				prev := 0
				for rank := 30; rank >= 1; rank-- {
					e := &models.EnrichedEvent{
						Rank:             rank,
						CareerContext:    models.CareerContext{VsCareerAvgMultiple: 1},
						DataCompleteness: models.DataCompleteness{CompletenessScore: completeness},
					}
					s := Score(e, a)
					assert.GreaterOrEqual(t, s, prev, "rank %d completeness %.0f", rank, completeness)
					prev = s
				}

				prev = 0
				for _, career := range []float64{2.99, 3, 4.99, 5, 6} {
					e := &models.EnrichedEvent{
						Rank:             20,
						CareerContext:    models.CareerContext{VsCareerAvgMultiple: career},
						DataCompleteness: models.DataCompleteness{CompletenessScore: completeness},
					}
					s := Score(e, a)
					assert.GreaterOrEqual(t, s, prev, "career %.2f completeness %.0f", career, completeness)
					prev = s
				}
			})
		}
	}
}
