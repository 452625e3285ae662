package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres-wire driver for the analytics warehouse
	"golang.org/x/sync/errgroup"

	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/pkg/logger"
)

// ErrNoBaseEvents is returned when the base view yields no rows
var ErrNoBaseEvents = errors.New("no base events returned")

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ViewStatus reports whether a view is readable
type ViewStatus struct {
	Table      string `json:"table"`
	View       string `json:"view"`
	Accessible bool   `json:"accessible"`
	RowCount   int64  `json:"row_count"`
	Err        string `json:"error,omitempty"`
}

// Client queries the four precomputed event views
type Client struct {
	db      *sql.DB
	views   config.ViewsConfig
	timeout time.Duration
	log     *logger.Logger
}

// Open connects to the warehouse described by cfg
func Open(ctx context.Context, cfg config.WarehouseConfig, log *logger.Logger) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse ping failed: %w", err)
	}
	c, err := NewClient(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Dial is Open without the initial ping. Connection errors surface on the
// first query instead.
func Dial(cfg config.WarehouseConfig, log *logger.Logger) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	c, err := NewClient(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an existing handle. View names are validated up front.
func NewClient(db *sql.DB, cfg config.WarehouseConfig, log *logger.Logger) (*Client, error) {
	for _, view := range []string{
		cfg.Views.BaseEvents,
		cfg.Views.HistoricalContext,
		cfg.Views.TrendAnalysis,
		cfg.Views.MarketRankings,
	} {
		if !identifierPattern.MatchString(view) {
			return nil, fmt.Errorf("invalid view name %q", view)
		}
	}
	return &Client{
		db:      db,
		views:   cfg.Views,
		timeout: cfg.QueryTimeout,
		log:     log.WithComponent("warehouse"),
	}, nil
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) viewList() [][2]string {
	return [][2]string{
		{TableBaseEvents, c.views.BaseEvents},
		{TableHistoricalContext, c.views.HistoricalContext},
		{TableTrendAnalysis, c.views.TrendAnalysis},
		{TableMarketRankings, c.views.MarketRankings},
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// TestConnection runs a trivial query and returns the server timestamp
func (c *Client) TestConnection(ctx context.Context) (time.Time, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var ts time.Time
	if err := c.db.QueryRowContext(ctx, "SELECT CURRENT_TIMESTAMP").Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("connection test failed: %w", err)
	}
	c.log.Info().Time("server_time", ts).Msg("Warehouse connection OK")
	return ts, nil
}

// QueryTopEvents loads all four views ordered by recent GMS rank.
// A failing side view degrades to an empty table; the base view is mandatory.
func (c *Client) QueryTopEvents(ctx context.Context) (*Tables, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results := make([][]RawRow, 4)
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range c.viewList() {
		i, table, view := i, v[0], v[1]
		g.Go(func() error {
			rows, err := c.query(gctx, fmt.Sprintf("SELECT * FROM %s ORDER BY recent_gms_rank", view))
			if err != nil {
				if table == TableBaseEvents {
					return fmt.Errorf("failed to load %s: %w", table, err)
				}
				c.log.Warn().Err(err).Str("table", table).Str("view", view).Msg("Side view unavailable, continuing without it")
				return nil
			}
			c.log.Info().Str("table", table).Int("rows", len(rows)).Msg("Loaded view")
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tables := &Tables{
		BaseEvents:        results[0],
		HistoricalContext: results[1],
		TrendAnalysis:     results[2],
		MarketRankings:    results[3],
	}
	if len(tables.BaseEvents) == 0 {
		return nil, ErrNoBaseEvents
	}
	return tables, nil
}

// ValidateViews counts rows in every configured view
func (c *Client) ValidateViews(ctx context.Context) []ViewStatus {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var statuses []ViewStatus
	for _, v := range c.viewList() {
		status := ViewStatus{Table: v[0], View: v[1]}
		err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", v[1])).Scan(&status.RowCount)
		if err != nil {
			status.Err = err.Error()
			c.log.Warn().Err(err).Str("view", v[1]).Msg("View not accessible")
		} else {
			status.Accessible = true
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// SampleRows returns up to limit rows of an arbitrary view
func (c *Client) SampleRows(ctx context.Context, view string, limit int) ([]RawRow, error) {
	if !identifierPattern.MatchString(view) {
		return nil, fmt.Errorf("invalid view name %q", view)
	}
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", view, limit))
}

func (c *Client) query(ctx context.Context, q string) ([]RawRow, error) {
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for i := range cols {
		cols[i] = strings.ToUpper(cols[i])
	}

	var out []RawRow
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(RawRow, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
