package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/storage"
	"github.com/event-content-agent/internal/storage/sqlite"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
)

type fakeWarehouse struct {
	tables  *warehouse.Tables
	err     error
	pingErr error
}

func (f *fakeWarehouse) QueryTopEvents(context.Context) (*warehouse.Tables, error) {
	return f.tables, f.err
}

func (f *fakeWarehouse) TestConnection(context.Context) (time.Time, error) {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), f.pingErr
}

func (f *fakeWarehouse) ValidateViews(context.Context) []warehouse.ViewStatus {
	return []warehouse.ViewStatus{{View: "v_base", Accessible: true, RowCount: 3}}
}

func (f *fakeWarehouse) SampleRows(_ context.Context, _ string, limit int) ([]warehouse.RawRow, error) {
	return f.tables.BaseEvents[:limit], nil
}

type fakeModel struct {
	mu        sync.Mutex
	failEvent string
	pingErr   error
	calls     int
	onCall    func()
}

func (f *fakeModel) CreateSocialPost(_ context.Context, e *models.EnrichedEvent, angle models.Angle, platform models.Platform, o *ai.PromptOverrides) ai.GeneratedContent {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}

	platform = o.PlatformOr(platform)
	if e.EventID == f.failEvent {
		return ai.GeneratedContent{VisualText: "❌ failed", Caption: "❌ failed", Platform: platform, IsError: true, ErrorKind: ai.KindRateLimit}
	}
	return ai.GeneratedContent{
		VisualText: fmt.Sprintf("%s %s", e.EventID, angle),
		Caption:    "See " + e.DisplayName() + " live",
		Platform:   platform,
	}
}

func (f *fakeModel) Ping(context.Context) (string, error) {
	if f.pingErr != nil {
		return "", f.pingErr
	}
	return "API test successful", nil
}

func (f *fakeModel) Model() string    { return "test-model" }
func (f *fakeModel) Provider() string { return "fake" }

type fakePublisher struct {
	payloads []export.WebhookPayload
	err      error
}

func (f *fakePublisher) Send(_ context.Context, p export.WebhookPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

type fakeTracker struct {
	synced int
}

func (f *fakeTracker) SyncContent(_ context.Context, items []*models.ContentItem) (int, int, error) {
	f.synced += len(items)
	return len(items), 0, nil
}

func row(id string, rank int64) warehouse.RawRow {
	return warehouse.RawRow{
		"EVENT_ID":                   id,
		"EVENT_NAME":                 "Show " + id,
		"CLASSIFIED_ARTIST_NAME":     "Artist " + id,
		"EVENT_PARENT_CATEGORY_NAME": "Rock",
		"VENUE_CITY":                 "London",
		"VENUE_COUNTRY_NAME":         "United Kingdom",
		"RECENT_GMS_RANK":            rank,
		"TOTAL_GMS":                  100000.0,
		"RECENT_7D_GMS":              float64(50000 - rank*1000),
	}
}

func testTables() *warehouse.Tables {
	return &warehouse.Tables{
		BaseEvents: []warehouse.RawRow{row("E1", 1), row("E2", 2), row("E3", 3)},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Warehouse:  config.WarehouseConfig{Views: config.ViewsConfig{BaseEvents: "v_base"}},
		Generation: config.GenerationConfig{MaxEvents: 2, MaxAnglesPerEvent: 1, Platform: "tiktok"},
		Batch:      config.BatchConfig{MaxWorkers: 2},
		Export:     config.ExportConfig{WebhookMaxItems: 20},
	}
}

type harness struct {
	agent   *Agent
	model   *fakeModel
	repo    *sqlite.Repository
	webhook *fakePublisher
	tracker *fakeTracker
	dir     string
}

func newHarness(t *testing.T, wh *fakeWarehouse, model *fakeModel) *harness {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })

	dir := filepath.Join(t.TempDir(), "out")
	h := &harness{
		model:   model,
		repo:    repo,
		webhook: &fakePublisher{},
		tracker: &fakeTracker{},
		dir:     dir,
	}

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ids := 0
	h.agent = NewAgent(wh, model, export.NewWriter(dir, logger.Nop()), testConfig(), logger.Nop(),
		WithRepository(repo),
		WithWebhook(h.webhook),
		WithTracker(h.tracker),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		}),
	)
	return h
}

func TestRun_FullPipeline(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{failEvent: "E2"})
	ctx := context.Background()

	res, err := h.agent.Run(ctx, RunOptions{Webhook: true})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.Run.RunID)
	assert.Equal(t, models.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 3, res.Run.EventsLoaded)
	assert.Equal(t, 2, res.Run.EventsProcessed, "max events caps the batch")
	assert.Equal(t, 1, res.Run.ContentGenerated)
	assert.Equal(t, 1, res.Run.ContentErrors)
	require.Len(t, res.Items, 2)
	require.Len(t, res.Files, 2)
	for _, f := range res.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	require.Len(t, h.webhook.payloads, 1)
	assert.Equal(t, 1, h.webhook.payloads[0].WebhookData.ContentCount, "error items never reach the webhook")
	assert.Equal(t, 2, h.tracker.synced)
	assert.Equal(t, 2, res.Tracked)

	stored, err := h.repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, "fake", stored.Settings["provider"])
	assert.Len(t, stored.OutputFiles, 2)

	items, err := h.repo.ListContent(ctx, storage.ContentFilter{RunID: "run-1", IncludeErrors: true})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRun_PreselectedEventsSkipWarehouse(t *testing.T) {
	wh := &fakeWarehouse{err: errors.New("should not be queried")}
	h := newHarness(t, wh, &fakeModel{})

	events := []*models.EnrichedEvent{{EventID: "X1", EventName: "Show", Rank: 1, VenueCity: "Paris", VenueCountry: "France"}}
	res, err := h.agent.Run(context.Background(), RunOptions{
		Mode:      models.RunModeDashboard,
		Events:    events,
		SkipFiles: true,
		Overrides: &ai.PromptOverrides{Platform: "twitter"},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, models.PlatformTwitter, res.Items[0].Platform)
	assert.Empty(t, res.Files)
	assert.Equal(t, models.RunModeDashboard, res.Run.Mode)
}

func TestRun_WarehouseFailureFailsRun(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{err: errors.New("connection refused")}, &fakeModel{})
	ctx := context.Background()

	_, err := h.agent.Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	run, err := h.repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "connection refused")
	assert.Zero(t, h.model.calls)
}

func TestRun_CancelledRunDiscardsContent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{onCall: cancel})

	res, err := h.agent.Run(ctx, RunOptions{Webhook: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Files)

	run, err := h.repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "generation interrupted")

	items, err := h.repo.ListContent(context.Background(), storage.ContentFilter{RunID: "run-1", IncludeErrors: true})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoDirExists(t, h.dir)
	assert.Empty(t, h.webhook.payloads)
	assert.Zero(t, h.tracker.synced)
}

func TestRun_NoModel(t *testing.T) {
	a := NewAgent(&fakeWarehouse{tables: testTables()}, nil, nil, testConfig(), logger.Nop())
	_, err := a.Run(context.Background(), RunOptions{})
	assert.Error(t, err)
}

func TestDryRun(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{})
	ctx := context.Background()

	res, err := h.agent.DryRun(ctx, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, res.EventsLoaded)
	assert.Equal(t, 3, res.EventsUsed)
	require.Len(t, res.Preview, 3)
	assert.Equal(t, "Artist E1", res.Preview[0].Artist)
	assert.Equal(t, []models.Angle{models.AngleTopPerformance}, res.Preview[0].Angles)
	assert.Equal(t, 3, res.AngleTotals[models.AngleTopPerformance])
	assert.Equal(t, 3, res.TotalContent)
	assert.Zero(t, h.model.calls, "dry runs never call the model")

	run, err := h.repo.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunModeDryRun, run.Mode)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestTestConnection(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{})

	report := h.agent.TestConnection(context.Background(), 2)
	assert.True(t, report.OK())
	assert.Len(t, report.SampleRows, 2)
	assert.Equal(t, "v_base", report.SampleView)
	assert.Equal(t, "API test successful", report.LLMResponse)
	assert.Equal(t, "test-model", report.Model)

	h = newHarness(t, &fakeWarehouse{tables: testTables(), pingErr: errors.New("down")}, &fakeModel{pingErr: errors.New("401")})
	report = h.agent.TestConnection(context.Background(), 2)
	assert.False(t, report.OK())
	assert.Equal(t, "down", report.WarehouseErr)
	assert.Equal(t, "401", report.LLMErr)
	assert.Empty(t, report.Views)
}

func TestQuality(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{})

	report, err := h.agent.Quality(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalEvents)
	assert.Zero(t, report.CompleteDataEvents)
}

func TestRegenerate(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{})
	e := &models.EnrichedEvent{EventID: "E1", Rank: 1}

	item, err := h.agent.Regenerate(context.Background(), e, models.AngleGenreLeader, RunOptions{Platform: "instagram"})
	require.NoError(t, err)
	assert.Equal(t, "E1_genre_leader", item.ContentID())
	assert.Equal(t, models.PlatformInstagram, item.Platform)

	_, err = h.agent.Regenerate(context.Background(), e, models.Angle("viral"), RunOptions{})
	assert.Error(t, err)
}

func TestStoredRunOperations(t *testing.T) {
	h := newHarness(t, &fakeWarehouse{tables: testTables()}, &fakeModel{})
	ctx := context.Background()

	_, err := h.agent.Run(ctx, RunOptions{})
	require.NoError(t, err)

	stored, err := h.agent.LoadRun(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "run-1", stored.Run.RunID)
	assert.Len(t, stored.Items, 2)

	files, err := h.agent.ExportRun(ctx, "run-1", []export.Format{export.FormatCSV})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".csv", filepath.Ext(files[0]))

	payload, err := h.agent.SendWebhook(ctx, "run-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.WebhookData.ContentCount)

	added, _, err := h.agent.SyncTracker(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	_, err = h.agent.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoredRunOperations_NoRepository(t *testing.T) {
	a := NewAgent(&fakeWarehouse{}, &fakeModel{}, nil, testConfig(), logger.Nop())
	_, err := a.LoadRun(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrNoRepository)
}
