package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-content-agent/internal/agent/generator"
	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/session"
	"github.com/event-content-agent/internal/storage/sqlite"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakePipeline struct {
	loadErr     error
	lastRun     generator.RunOptions
	regenerated int
}

func testEvents() []*models.EnrichedEvent {
	return []*models.EnrichedEvent{
		{EventID: "E1", EventName: "Show 1", ArtistDisplayName: "Alpha", Genre: "Rock", Rank: 1, VenueCity: "London", VenueCountry: "UK",
			CareerContext: models.CareerContext{VsCareerAvgMultiple: 6}, MarketPosition: models.MarketPosition{YTDGenreRank: models.Unranked}},
		{EventID: "E2", EventName: "Show 2", ArtistDisplayName: "Beta", Genre: "Pop", Rank: 2, VenueCity: "Paris", VenueCountry: "France",
			MarketPosition: models.MarketPosition{YTDGenreRank: models.Unranked}},
	}
}

func (f *fakePipeline) LoadEvents(context.Context) (*generator.LoadResult, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &generator.LoadResult{
		Tables:  &warehouse.Tables{BaseEvents: []warehouse.RawRow{{}, {}}},
		Events:  testEvents(),
		Skipped: 0,
	}, nil
}

func (f *fakePipeline) Run(_ context.Context, opts generator.RunOptions) (*generator.RunResult, error) {
	f.lastRun = opts
	var items []*models.ContentItem
	for i, e := range opts.Events {
		items = append(items, &models.ContentItem{
			EventID:          e.EventID,
			ArtistName:       e.DisplayName(),
			ContentAngle:     models.AngleTopPerformance,
			Platform:         models.PlatformTikTok,
			Caption:          "caption " + e.EventID,
			Priority:         9 - i,
			DataQualityScore: float64(i),
			GeneratedAt:      fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}
	run := &models.GenerationRun{RunID: "run-dash", Mode: opts.Mode, Status: models.RunStatusCompleted}
	return &generator.RunResult{
		Run:   run,
		Items: items,
		Batch: &batch.Result{Items: items, ProcessedCount: len(items)},
	}, nil
}

func (f *fakePipeline) Regenerate(_ context.Context, e *models.EnrichedEvent, angle models.Angle, opts generator.RunOptions) (*models.ContentItem, error) {
	f.regenerated++
	return &models.ContentItem{
		EventID:      e.EventID,
		ArtistName:   e.DisplayName(),
		ContentAngle: angle,
		Platform:     models.ParsePlatform(opts.Platform),
		Caption:      "fresh",
		Priority:     9,
	}, nil
}

type testServer struct {
	router   *gin.Engine
	pipeline *fakePipeline
	session  *session.Session
	repo     *sqlite.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "dash.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })

	p := &fakePipeline{}
	sess := session.New()
	srv := NewServer(p, sess, export.NewWriter(filepath.Join(t.TempDir(), "exports"), logger.Nop()), logger.Nop(),
		WithRepository(repo),
		WithMetrics(metrics.New(), "/metrics"),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &testServer{router: srv.Router(), pipeline: p, session: sess, repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])

	w, _ = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request")
}

func TestWorkflow_LoadSelectGenerateExport(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp := ts.do(t, http.MethodPost, "/api/data/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), data(resp)["events"])

	w, resp = ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := data(resp)["events"].([]interface{})
	require.Len(t, events, 2)
	first := events[0].(map[string]interface{})
	assert.Equal(t, "Alpha", first["artist"])
	assert.Equal(t, float64(1), first["high_impact_angles"])

	w, _ = ts.do(t, http.MethodPost, "/api/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "nothing selected yet")

	w, resp = ts.do(t, http.MethodPost, "/api/events/select", SelectRequest{EventIDs: []string{"E2", "E1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"E2", "E1"}, data(resp)["selected"])

	w, _ = ts.do(t, http.MethodPost, "/api/events/select", SelectRequest{EventIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/prompts", ai.PromptOverrides{SystemPrompt: "Be bold.", Platform: "twitter"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = ts.do(t, http.MethodPost, "/api/generate", GenerateRequest{MaxAnglesPerEvent: 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-dash", data(resp)["run_id"])
	assert.Equal(t, models.RunModeDashboard, ts.pipeline.lastRun.Mode)
	assert.True(t, ts.pipeline.lastRun.SkipFiles)
	assert.Equal(t, "Be bold.", ts.pipeline.lastRun.Overrides.SystemPrompt)
	assert.Len(t, ts.pipeline.lastRun.Events, 2)

	w, resp = ts.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(session.StepExport), data(resp)["current_step"])

	w, resp = ts.do(t, http.MethodPost, "/api/export", ExportRequest{Formats: []string{"json", "csv"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(resp)["files"], 2)

	w, resp = ts.do(t, http.MethodGet, "/api/exports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(resp)["session"], 1)
	assert.Len(t, data(resp)["recent"], 2)

	w, resp = ts.do(t, http.MethodPost, "/api/session/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(resp)["data_loaded"])
}

func TestLoadData_Failure(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.loadErr = errors.New("warehouse down")

	w, resp := ts.do(t, http.MethodPost, "/api/data/load", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "warehouse down", resp["detail"])
	assert.Equal(t, "warehouse down", ts.session.LastError())
}

func TestSetPrompts_BadPlaceholder(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPut, "/api/prompts", ai.PromptOverrides{UserTemplate: "Hype {not_a_field}"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp["detail"], "not_a_field")
	prompts := ts.session.CustomPrompts()
	assert.True(t, prompts.IsZero())
}

func TestPromptTemplates(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodGet, "/api/prompts/templates?platform=tiktok", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, data(resp)["system_prompt"])
	assert.NotEmpty(t, data(resp)["templates"])
	assert.NotEmpty(t, data(resp)["placeholders"])
}

func generated(t *testing.T, ts *testServer) {
	t.Helper()
	ts.do(t, http.MethodPost, "/api/data/load", nil)
	ts.do(t, http.MethodPost, "/api/events/select", SelectRequest{Top: 2})
	w, _ := ts.do(t, http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListContent_FiltersAndSorts(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/api/content", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	generated(t, ts)

	w, resp := ts.do(t, http.MethodGet, "/api/content?sort=artist&order=desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := data(resp)["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Beta", items[0].(map[string]interface{})["artist_name"])
	assert.Equal(t, []interface{}{"Alpha", "Beta"}, data(resp)["artists"])

	w, resp = ts.do(t, http.MethodGet, "/api/content?artist=alpha", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), data(resp)["total"])
}

func TestFilterContent(t *testing.T) {
	items := []*models.ContentItem{
		{EventID: "A", ArtistName: "Zed", ContentAngle: models.AngleMajorSpike, Priority: 5, DataQualityScore: 0.2},
		{EventID: "B", ArtistName: "Amy", ContentAngle: models.AngleGenreLeader, Priority: 9, DataQualityScore: 0.9},
		{EventID: "C", ArtistName: "Max", ContentAngle: models.AngleMajorSpike, Priority: 7, IsError: true},
	}

	got := FilterContent(items, "", "", "priority", "desc", true)
	assert.Equal(t, []string{"B", "C", "A"}, ids(got))

	got = FilterContent(items, "", "", "quality", "asc", false)
	assert.Equal(t, []string{"A", "B"}, ids(got))

	got = FilterContent(items, "", string(models.AngleMajorSpike), "artist", "asc", true)
	assert.Equal(t, []string{"C", "A"}, ids(got))

	got = FilterContent(items, "", "", "bogus", "asc", true)
	assert.Equal(t, []string{"A", "C", "B"}, ids(got), "unknown sort falls back to priority")
}

func ids(items []*models.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.EventID
	}
	return out
}

func TestRegenerate(t *testing.T) {
	ts := newTestServer(t)
	generated(t, ts)

	w, _ := ts.do(t, http.MethodPost, "/api/content/missing_x/regenerate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := ts.do(t, http.MethodPost, "/api/content/E1_top_performance/regenerate", RegenerateRequest{Platform: "instagram"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", data(resp)["caption"])
	assert.Equal(t, "instagram", data(resp)["platform"])
	assert.Equal(t, 1, ts.pipeline.regenerated)

	item, ok := ts.session.FindContent("E1_top_performance")
	require.True(t, ok)
	assert.Equal(t, "fresh", item.Caption)
	assert.Equal(t, "run-dash", item.RunID)
}

func TestSchedule(t *testing.T) {
	ts := newTestServer(t)
	generated(t, ts)

	w, resp := ts.do(t, http.MethodGet, "/api/schedule?posts_per_day=1&start=2026-03-02T09:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), data(resp)["total_days"])

	w, _ = ts.do(t, http.MethodGet, "/api/schedule?posts_per_day=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuns(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.repo.CreateRun(ctx, &models.GenerationRun{RunID: "r1", Mode: models.RunModeRun, Status: models.RunStatusCompleted, StartedAt: fixedNow}))
	require.NoError(t, ts.repo.SaveContent(ctx, "r1", []*models.ContentItem{{EventID: "E1", ContentAngle: models.AngleMajorSpike, Priority: 8}}))

	w, resp := ts.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], 1)

	w, resp = ts.do(t, http.MethodGet, "/api/runs/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(resp)["items"], 1)

	w, _ = ts.do(t, http.MethodGet, "/api/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
