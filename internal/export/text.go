package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/event-content-agent/internal/models"
)

// WriteText renders a human-readable report grouped by artist
func WriteText(w io.Writer, items []*models.ContentItem, now time.Time) error {
	bw := bufio.NewWriter(w)
	line := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	events := map[string]bool{}
	byArtist := map[string][]*models.ContentItem{}
	for _, item := range items {
		events[item.EventID] = true
		byArtist[item.ArtistName] = append(byArtist[item.ArtistName], item)
	}
	artists := make([]string, 0, len(byArtist))
	for a := range byArtist {
		artists = append(artists, a)
	}
	sort.Strings(artists)

	line("🎵 SOCIAL MEDIA CONTENT EXPORT")
	line(strings.Repeat("=", 60))
	line("Exported: %s", now.Format("2006-01-02 15:04:05"))
	line("Total Pieces: %d", len(items))
	line("Unique Events: %d", len(events))
	line("")

	for _, artist := range artists {
		line("🎭 %s", strings.ToUpper(artist))
		line(strings.Repeat("-", 40))
		line("")

		for i, item := range byArtist[artist] {
			line("[%d] %s • %s • Priority: %d/10", i+1, item.ContentAngle.Title(), item.Platform.Title(), item.Priority)
			line("")
			line("🎨 VISUAL TEXT:")
			line("%s", orDefault(item.VisualText, "No visual text"))
			line("")
			line("📝 CAPTION:")
			line("%s", orDefault(item.Caption, "No caption"))
			line("")
			line("📊 METADATA:")
			line("Event: %s", item.EventName)
			line("Quality: %s", percent(item.DataQualityScore))
			line("Generated: %s", item.GeneratedAt.Format(time.RFC3339))
			line("")
			line(strings.Repeat("~", 50))
			line("")
		}
		line("")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write text export: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
