package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
)

// ErrDisabled is returned by NewSheetsTracker when the tracker is turned off
var ErrDisabled = errors.New("sheets tracker is disabled")

// SheetColumns defines the column headers for the content tracking sheet
var SheetColumns = []string{
	"Content ID",
	"Run ID",
	"Event ID",
	"Artist",
	"Event",
	"Venue",
	"Angle",
	"Platform",
	"Priority",
	"Visual Text",
	"Caption",
	"Status",
	"Generated At",
	"Approved?",
	"Notes",
}

const (
	lastColumn = "O"
	// machine-owned columns I..M are rewritten on sync; N and O belong to the reviewer
	syncedFrom = "I"
	syncedTo   = "M"
)

// ContentStatus is the tracker status of a content row
type ContentStatus string

const (
	StatusGenerated ContentStatus = "Generated"
	StatusFailed    ContentStatus = "Failed"
)

// TrackedContent is a content row as it appears in the sheet
type TrackedContent struct {
	ContentID   string
	RunID       string
	EventID     string
	Artist      string
	Event       string
	Venue       string
	Angle       string
	Platform    string
	Priority    int
	VisualText  string
	Caption     string
	Status      ContentStatus
	GeneratedAt time.Time
	Approved    string
	Notes       string
}

// SheetsTracker mirrors generated content into a Google Sheet for review
type SheetsTracker struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger
}

// NewSheetsTracker creates a new Google Sheets tracker. Extra client options
// are appended after the credential option.
func NewSheetsTracker(ctx context.Context, cfg config.TrackerConfig, log *logger.Logger, opts ...option.ClientOption) (*SheetsTracker, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("tracker.spreadsheet_id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case cfg.ServiceAccountJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	case len(opts) == 0:
		return nil, fmt.Errorf("no Google credentials provided: set credentials_file or service_account_json")
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Content"
	}

	return &SheetsTracker{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("sheets-tracker"),
	}, nil
}

// InitializeSheet creates the sheet and headers if they don't exist
func (t *SheetsTracker) InitializeSheet(ctx context.Context) error {
	if err := t.ensureSheetExists(ctx); err != nil {
		return err
	}

	readRange := fmt.Sprintf("%s!A1:%s1", t.sheetName, lastColumn)
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(resp.Values) == 0 {
		t.log.Info().Msg("Initializing sheet with headers")
		return t.writeHeaders(ctx)
	}

	t.log.Debug().Msg("Sheet already has headers")
	return nil
}

func (t *SheetsTracker) ensureSheetExists(ctx context.Context) error {
	spreadsheet, err := t.service.Spreadsheets.Get(t.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == t.sheetName {
			t.log.Debug().Str("sheet", t.sheetName).Msg("Sheet already exists")
			return nil
		}
	}

	t.log.Info().Str("sheet", t.sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: t.sheetName},
				},
			},
		},
	}

	if _, err := t.service.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}

func (t *SheetsTracker) writeHeaders(ctx context.Context) error {
	headerRow := make([]interface{}, len(SheetColumns))
	for i, col := range SheetColumns {
		headerRow[i] = col
	}

	writeRange := fmt.Sprintf("%s!A1", t.sheetName)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{headerRow}}

	_, err := t.service.Spreadsheets.Values.Update(t.spreadsheetID, writeRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	t.log.Info().Msg("Sheet headers initialized")
	return nil
}

// SyncContent appends new content rows and refreshes the machine-owned
// columns of rows already in the sheet. It returns added and updated counts.
func (t *SheetsTracker) SyncContent(ctx context.Context, items []*models.ContentItem) (int, int, error) {
	if err := t.InitializeSheet(ctx); err != nil {
		return 0, 0, err
	}

	existing, err := t.existingContentIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	var newRows [][]interface{}
	var updates []*sheets.ValueRange
	for _, item := range items {
		if rowNum, ok := existing[item.ContentID()]; ok {
			updates = append(updates, &sheets.ValueRange{
				Range:  fmt.Sprintf("%s!%s%d:%s%d", t.sheetName, syncedFrom, rowNum, syncedTo, rowNum),
				Values: [][]interface{}{syncedCells(item)},
			})
			continue
		}
		newRows = append(newRows, contentRow(item))
	}

	added, updated := 0, 0

	if len(newRows) > 0 {
		appendRange := fmt.Sprintf("%s!A:%s", t.sheetName, lastColumn)
		_, err := t.service.Spreadsheets.Values.Append(t.spreadsheetID, appendRange, &sheets.ValueRange{Values: newRows}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to batch append content: %w", err)
		}
		added = len(newRows)
		t.log.Info().Int("count", added).Msg("Batch appended new content")
	}

	if len(updates) > 0 {
		req := &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             updates,
		}
		if _, err := t.service.Spreadsheets.Values.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return added, 0, fmt.Errorf("failed to update existing content: %w", err)
		}
		updated = len(updates)
	}

	t.log.Info().Int("added", added).Int("updated", updated).Msg("Content synced to sheet")
	return added, updated, nil
}

// existingContentIDs maps content ids already in the sheet to their 1-indexed row
func (t *SheetsTracker) existingContentIDs(ctx context.Context) (map[string]int, error) {
	readRange := fmt.Sprintf("%s!A:A", t.sheetName)
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read content ids: %w", err)
	}

	ids := make(map[string]int)
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		if id := fmt.Sprintf("%v", row[0]); id != "" {
			ids[id] = i + 1
		}
	}
	return ids, nil
}

// ListContent reads every tracked content row from the sheet
func (t *SheetsTracker) ListContent(ctx context.Context) ([]*TrackedContent, error) {
	readRange := fmt.Sprintf("%s!A2:%s", t.sheetName, lastColumn)
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var rows []*TrackedContent
	for _, row := range resp.Values {
		if tc := parseRow(row); tc != nil {
			rows = append(rows, tc)
		}
	}
	return rows, nil
}

func statusOf(item *models.ContentItem) ContentStatus {
	if item.IsError {
		return StatusFailed
	}
	return StatusGenerated
}

func contentRow(item *models.ContentItem) []interface{} {
	row := []interface{}{
		item.ContentID(),
		item.RunID,
		item.EventID,
		item.ArtistName,
		item.EventName,
		item.VenueLocation,
		string(item.ContentAngle),
		string(item.Platform),
	}
	row = append(row, syncedCells(item)...)
	return append(row, "", "") // Approved?, Notes: left for the reviewer
}

// syncedCells renders columns I..M
func syncedCells(item *models.ContentItem) []interface{} {
	return []interface{}{
		item.Priority,
		item.VisualText,
		item.Caption,
		string(statusOf(item)),
		formatTime(item.GeneratedAt),
	}
}

func parseRow(row []interface{}) *TrackedContent {
	if len(row) < 12 {
		return nil
	}

	priority, _ := strconv.Atoi(safeString(row, 8))
	generatedAt, _ := time.Parse(time.RFC3339, safeString(row, 12))

	return &TrackedContent{
		ContentID:   safeString(row, 0),
		RunID:       safeString(row, 1),
		EventID:     safeString(row, 2),
		Artist:      safeString(row, 3),
		Event:       safeString(row, 4),
		Venue:       safeString(row, 5),
		Angle:       safeString(row, 6),
		Platform:    safeString(row, 7),
		Priority:    priority,
		VisualText:  safeString(row, 9),
		Caption:     safeString(row, 10),
		Status:      ContentStatus(safeString(row, 11)),
		GeneratedAt: generatedAt,
		Approved:    safeString(row, 13),
		Notes:       safeString(row, 14),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func safeString(row []interface{}, i int) string {
	if i < len(row) {
		return fmt.Sprintf("%v", row[i])
	}
	return ""
}
