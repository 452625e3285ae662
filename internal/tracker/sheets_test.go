package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
)

// fakeSheets serves the handful of Sheets v4 endpoints the tracker calls
type fakeSheets struct {
	mu        sync.Mutex
	sheetName string
	hasSheet  bool
	rows      [][]interface{}
	appended  int
	updated   []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/values:batchUpdate"):
		var req struct {
			Data []struct {
				Range string `json:"range"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, d := range req.Data {
			f.updated = append(f.updated, d.Range)
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.hasSheet = true
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		f.appended += len(vr.Values)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(vr.Values, f.rows...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		var values [][]interface{}
		switch {
		case strings.HasSuffix(rng, "!A1:O1"):
			if len(f.rows) > 0 {
				values = f.rows[:1]
			}
		case strings.HasSuffix(rng, "!A2:O"):
			if len(f.rows) > 1 {
				values = f.rows[1:]
			}
		default:
			values = f.rows
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": rng, "values": values})
	case r.Method == http.MethodGet:
		var sheetsList []map[string]interface{}
		if f.hasSheet {
			sheetsList = append(sheetsList, map[string]interface{}{
				"properties": map[string]interface{}{"title": f.sheetName},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"spreadsheetId": "sheet-1", "sheets": sheetsList})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestTracker(t *testing.T, fake *fakeSheets) *SheetsTracker {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr, err := NewSheetsTracker(context.Background(), config.TrackerConfig{
		Enabled:       true,
		SpreadsheetID: "sheet-1",
		SheetName:     fake.sheetName,
	}, logger.Nop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return tr
}

func sampleItem(eventID string, angle models.Angle, priority int) *models.ContentItem {
	return &models.ContentItem{
		RunID:         "run-1",
		EventID:       eventID,
		ArtistName:    "The Band",
		EventName:     "The Band Live",
		VenueLocation: "London, UK",
		ContentAngle:  angle,
		Platform:      models.PlatformTikTok,
		VisualText:    "HUGE",
		Caption:       "caption",
		Priority:      priority,
		GeneratedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewSheetsTracker_Disabled(t *testing.T) {
	tr, err := NewSheetsTracker(context.Background(), config.TrackerConfig{}, logger.Nop())
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewSheetsTracker_RequiresCredentials(t *testing.T) {
	_, err := NewSheetsTracker(context.Background(), config.TrackerConfig{Enabled: true, SpreadsheetID: "x"}, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestSyncContent_CreatesSheetAndAppends(t *testing.T) {
	fake := &fakeSheets{sheetName: "Content"}
	tr := newTestTracker(t, fake)

	added, updated, err := tr.SyncContent(context.Background(), []*models.ContentItem{
		sampleItem("E1", models.AngleMajorSpike, 9),
		sampleItem("E2", models.AngleGenreLeader, 7),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, updated)
	assert.True(t, fake.hasSheet)
	require.Len(t, fake.rows, 3)
	assert.Equal(t, "Content ID", fake.rows[0][0])
	assert.Equal(t, "E1_major_spike", fake.rows[1][0])

	rows, err := tr.ListContent(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 9, rows[0].Priority)
	assert.Equal(t, StatusGenerated, rows[0].Status)
	assert.Equal(t, "London, UK", rows[0].Venue)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), rows[0].GeneratedAt)
}

func TestSyncContent_UpdatesExistingRows(t *testing.T) {
	fake := &fakeSheets{sheetName: "Content"}
	tr := newTestTracker(t, fake)
	ctx := context.Background()

	_, _, err := tr.SyncContent(ctx, []*models.ContentItem{sampleItem("E1", models.AngleMajorSpike, 9)})
	require.NoError(t, err)

	failed := sampleItem("E1", models.AngleMajorSpike, 10)
	failed.IsError = true
	added, updated, err := tr.SyncContent(ctx, []*models.ContentItem{
		failed,
		sampleItem("E3", models.AngleTourStandout, 6),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{"Content!I2:M2"}, fake.updated)
	assert.Equal(t, 3, fake.appended)
}

func TestContentRow_LeavesReviewerColumnsEmpty(t *testing.T) {
	item := sampleItem("E1", models.AngleMajorSpike, 9)
	item.IsError = true

	row := contentRow(item)
	require.Len(t, row, len(SheetColumns))
	assert.Equal(t, string(StatusFailed), row[11])
	assert.Equal(t, "", row[13])
	assert.Equal(t, "", row[14])
}

func TestParseRow_ShortRow(t *testing.T) {
	assert.Nil(t, parseRow([]interface{}{"only", "three", "cells"}))
}
