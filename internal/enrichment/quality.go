package enrichment

import (
	"github.com/event-content-agent/internal/models"
)

// QualityReport summarizes how complete a batch of events is
type QualityReport struct {
	Status                      string  `json:"status"`
	Message                     string  `json:"message,omitempty"`
	TotalEvents                 int     `json:"total_events"`
	CompleteDataEvents          int     `json:"complete_data_events"`
	AverageCompletenessScore    float64 `json:"average_completeness_score"`
	EventsMissingRequiredFields int     `json:"events_missing_required_fields"`
	DataQualityScore            float64 `json:"data_quality_score"`
}

// ValidateDataQuality weights average completeness at 70% and required-field coverage at 30%
func ValidateDataQuality(events []*models.EnrichedEvent) QualityReport {
	if len(events) == 0 {
		return QualityReport{Status: "error", Message: "No events to validate"}
	}

	report := QualityReport{Status: "success", TotalEvents: len(events)}
	var sum float64
	for _, e := range events {
		score := e.DataCompleteness.CompletenessScore
		sum += score
		if score == 1 {
			report.CompleteDataEvents++
		}
		if missingRequired(e) {
			report.EventsMissingRequiredFields++
		}
	}

	total := float64(report.TotalEvents)
	report.AverageCompletenessScore = sum / total
	report.DataQualityScore = report.AverageCompletenessScore*0.7 +
		(total-float64(report.EventsMissingRequiredFields))/total*0.3
	return report
}

// missingRequired treats zero and empty values as missing
func missingRequired(e *models.EnrichedEvent) bool {
	return e.EventID == "" || e.ArtistDisplayName == "" || e.TotalGMS == 0 || e.Recent7dGMS == 0
}
