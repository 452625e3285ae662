package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

var generatedAt = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func contentItem(eventID, artist string, angle models.Angle, prio int) *models.ContentItem {
	return &models.ContentItem{
		EventID:          eventID,
		ArtistName:       artist,
		EventName:        artist + " Live",
		VenueLocation:    "Berlin, Germany",
		Genre:            "Hip Hop",
		Rank:             2,
		ContentAngle:     angle,
		Platform:         models.PlatformTikTok,
		VisualText:       "BIG\nNIGHT",
		Caption:          artist + " in Berlin\n#livemusic",
		Priority:         prio,
		DataQualityScore: 2.0 / 3.0,
		EventMetrics: models.EventMetrics{
			Rank:                2,
			InternationalPct:    41.5,
			VsCareerAvgMultiple: 5.5,
			PerformanceCategory: "Hot",
			VenueCity:           "Berlin",
			VenueCountry:        "Germany",
		},
		GeneratedAt: generatedAt,
	}
}

func sampleItems() []*models.ContentItem {
	failed := contentItem("E3", "Zed", models.AngleTrendingEvent, 10)
	failed.IsError = true
	failed.VisualText = "❌ Rate limit exceeded."
	return []*models.ContentItem{
		contentItem("E2", "Beta Band", models.AngleGenreLeader, 7),
		contentItem("E1", "Alpha", models.AngleMajorSpike, 9),
		failed,
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	items := sampleItems()
	md := batch.BuildMetadata(items, generatedAt, generatedAt.Add(time.Minute))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewDocument(items, md, generatedAt)))

	doc, err := ReadJSON(&buf)
	require.NoError(t, err)
	require.Len(t, doc.Content, len(items))

	byID := map[string]*models.ContentItem{}
	for _, item := range items {
		byID[item.ContentID()] = item
	}
	for _, got := range doc.Content {
		want := byID[got.ContentID()]
		require.NotNil(t, want)
		assert.Equal(t, want.EventID, got.EventID)
		assert.Equal(t, want.ContentAngle, got.ContentAngle)
		assert.Equal(t, want.VisualText, got.VisualText)
		assert.Equal(t, want.Caption, got.Caption)
		assert.Equal(t, want.Priority, got.Priority)
	}

	assert.Equal(t, "1.0", doc.Metadata.ExportVersion)
	assert.Equal(t, []string{"tiktok"}, doc.Metadata.Platforms)
	assert.Equal(t, 3, doc.Metadata.BatchSummary.TotalContentItems)
	assert.Equal(t, 1, doc.Metadata.BatchSummary.ErrorItems)
}

func TestJSON_MetadataIsFlat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewDocument(sampleItems(), batch.Metadata{}, generatedAt)))

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Contains(t, raw["metadata"], "batch_summary")
	assert.Contains(t, raw["metadata"], "exported_at")
	assert.Equal(t, "1.0", raw["metadata"]["export_version"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleItems()[:2]))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"1", "Beta Band", "Beta Band Live", "Genre Leader", "Tiktok",
		"BIG | NIGHT", "Beta Band in Berlin | #livemusic", "7", "66.7%",
		"2025-06-01T09:30:00Z", "E2", "Berlin", "Germany", "Hip Hop", "2",
	}, rows[1])
	assert.Equal(t, "2", rows[2][0])
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleItems(), generatedAt))
	out := buf.String()

	assert.Contains(t, out, "🎵 SOCIAL MEDIA CONTENT EXPORT")
	assert.Contains(t, out, "Exported: 2025-06-01 09:30:00")
	assert.Contains(t, out, "Total Pieces: 3")
	assert.Contains(t, out, "[1] Major Spike • Tiktok • Priority: 9/10")
	assert.Contains(t, out, "🎨 VISUAL TEXT:")
	assert.Contains(t, out, "📝 CAPTION:")
	assert.Contains(t, out, "Quality: 66.7%")

	// artists are listed alphabetically
	assert.Less(t, strings.Index(out, "🎭 ALPHA"), strings.Index(out, "🎭 BETA BAND"))
	assert.Less(t, strings.Index(out, "🎭 BETA BAND"), strings.Index(out, "🎭 ZED"))
}

func TestHashtags(t *testing.T) {
	tags := Hashtags(contentItem("E1", "Simon & Garfunkel", models.AngleMajorSpike, 9))
	assert.Equal(t, []string{"#livemusic", "#concerts", "#hiphop", "#trending", "#breakingnews", "#SimonandGarfunkel"}, tags)

	long := contentItem("E1", "An Extremely Long Artist Name Here", models.AngleTrendingEvent, 5)
	long.Genre = ""
	assert.Equal(t, []string{"#livemusic", "#concerts"}, Hashtags(long))
}

func TestBuildWebhookPayload(t *testing.T) {
	payload := BuildWebhookPayload(sampleItems(), 5, generatedAt)

	data := payload.WebhookData
	assert.Equal(t, generatedAt, data.Timestamp)
	require.Equal(t, 2, data.ContentCount, "error items are never sent")
	require.Len(t, data.Posts, 2)

	first := data.Posts[0]
	assert.Equal(t, "E1_major_spike", first.ID)
	assert.Equal(t, 9, first.PriorityScore)
	assert.Equal(t, 5.5, first.Metrics.CareerMultiple)
	assert.Equal(t, "Hot", first.Metrics.PerformanceCategory)
	assert.Contains(t, first.Hashtags, "#trending")

	assert.Len(t, BuildWebhookPayload(sampleItems(), 1, generatedAt).WebhookData.Posts, 1)
}

func newTestSender(url string, m *metrics.Metrics) *WebhookSender {
	s := NewWebhookSender(config.WebhookConfig{URL: url, Timeout: time.Second, MaxRetries: 2},
		ratelimit.NewLimiter(ratelimit.Limits{}), m, logger.Nop())
	s.policy = retry.NewPolicy(retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, retry.ShouldRetryHTTP)
	return s
}

func TestWebhookSender_RetriesServerErrors(t *testing.T) {
	var calls int32
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := metrics.New()
	err := newTestSender(srv.URL, m).Send(context.Background(), BuildWebhookPayload(sampleItems(), 20, generatedAt))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, got.WebhookData.ContentCount)
}

func TestWebhookSender_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestSender(srv.URL, nil).Send(context.Background(), WebhookPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWebhookSender_RequiresURL(t *testing.T) {
	err := newTestSender("", nil).Send(context.Background(), WebhookPayload{})
	assert.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"JSON", "text", "csv", "json", ""})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJSON, FormatText, FormatCSV}, got)

	_, err = ParseFormats([]string{"xlsx"})
	assert.Error(t, err)
}

func TestWriter_SaveAllAndRecent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, logger.Nop())
	items := sampleItems()
	md := batch.BuildMetadata(items, generatedAt, generatedAt)

	paths, err := w.SaveAll(items, md, []Format{FormatJSON, FormatCSV, FormatText}, generatedAt)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "social_content_export_20250601_093000.json"), paths[0])
	assert.Equal(t, filepath.Join(dir, "social_content_export_20250601_093000.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "social_content_export_20250601_093000.txt"), paths[2])

	runPaths, err := w.SaveRun(items, md, nil, generatedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "social_content_20250601_103000.json"), runPaths[0])
	assert.Equal(t, filepath.Join(dir, "social_content_20250601_103000.txt"), runPaths[1])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600))

	recent, err := w.RecentExports(0)
	require.NoError(t, err)
	assert.Len(t, recent, 5)

	limited, err := w.RecentExports(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()
	doc, err := ReadJSON(f)
	require.NoError(t, err)
	require.Len(t, doc.Content, 3)
	assert.Equal(t, 10, doc.Content[0].Priority, "exports are ordered by priority")
	assert.Equal(t, "E2", doc.Content[2].EventID)
}

func TestWriter_SaveAllRejectsEmpty(t *testing.T) {
	_, err := NewWriter(t.TempDir(), logger.Nop()).SaveAll(nil, batch.Metadata{}, []Format{FormatJSON}, generatedAt)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestWriter_RecentExportsMissingDir(t *testing.T) {
	files, err := NewWriter(filepath.Join(t.TempDir(), "absent"), logger.Nop()).RecentExports(10)
	require.NoError(t, err)
	assert.Empty(t, files)
}
