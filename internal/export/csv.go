package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/event-content-agent/internal/models"
)

var csvHeader = []string{
	"Index",
	"Artist_Name",
	"Event_Name",
	"Content_Angle",
	"Platform",
	"Visual_Text",
	"Caption",
	"Priority_Score",
	"Quality_Score",
	"Generated_At",
	"Event_ID",
	"Event_City",
	"Event_Country",
	"Event_Genre",
	"Event_Rank",
}

// WriteCSV writes one row per item. Newlines inside texts become " | ".
func WriteCSV(w io.Writer, items []*models.ContentItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i, item := range items {
		row := []string{
			strconv.Itoa(i + 1),
			item.ArtistName,
			item.EventName,
			item.ContentAngle.Title(),
			item.Platform.Title(),
			flatten(item.VisualText),
			flatten(item.Caption),
			strconv.Itoa(item.Priority),
			percent(item.DataQualityScore),
			item.GeneratedAt.Format(time.RFC3339),
			item.EventID,
			item.EventMetrics.VenueCity,
			item.EventMetrics.VenueCountry,
			item.Genre,
			strconv.Itoa(item.Rank),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " | ")
}

// percent renders a 0-1 score as "66.7%"
func percent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}
