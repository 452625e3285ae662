package enrichment

import (
	"strings"

	"github.com/event-content-agent/internal/warehouse"
)

// Index maps EVENT_ID to the first row carrying it
type Index struct {
	rows   map[string]warehouse.RawRow
	counts map[string]int
}

// NewIndex indexes rows by EVENT_ID; rows without an ID are ignored
func NewIndex(rows []warehouse.RawRow) *Index {
	idx := &Index{
		rows:   make(map[string]warehouse.RawRow, len(rows)),
		counts: make(map[string]int, len(rows)),
	}
	for _, row := range rows {
		key := eventKey(row)
		if key == "" {
			continue
		}
		idx.counts[key]++
		if _, seen := idx.rows[key]; !seen {
			idx.rows[key] = row
		}
	}
	return idx
}

// Lookup returns the first row for id and how many rows matched
func (i *Index) Lookup(id string) (warehouse.RawRow, int) {
	if i == nil {
		return nil, 0
	}
	key := strings.TrimSpace(id)
	return i.rows[key], i.counts[key]
}

// Match is the side-view rows found for one base row
type Match struct {
	Historical warehouse.RawRow
	Trend      warehouse.RawRow
	Market     warehouse.RawRow
	// Duplicates holds total match counts for tables where more than one row matched
	Duplicates map[string]int
}

// Joiner matches base rows against pre-indexed side views
type Joiner struct {
	hist   *Index
	trend  *Index
	market *Index
}

// NewJoiner indexes the side tables once for a batch
func NewJoiner(tables *warehouse.Tables) *Joiner {
	return &Joiner{
		hist:   NewIndex(tables.HistoricalContext),
		trend:  NewIndex(tables.TrendAnalysis),
		market: NewIndex(tables.MarketRankings),
	}
}

// Match finds the side rows for base. Absent matches are nil, never an error.
func (j *Joiner) Match(base warehouse.RawRow) Match {
	id := eventKey(base)
	var m Match
	var n int

	m.Historical, n = j.hist.Lookup(id)
	m.noteDuplicates(warehouse.TableHistoricalContext, n)
	m.Trend, n = j.trend.Lookup(id)
	m.noteDuplicates(warehouse.TableTrendAnalysis, n)
	m.Market, n = j.market.Lookup(id)
	m.noteDuplicates(warehouse.TableMarketRankings, n)
	return m
}

func (m *Match) noteDuplicates(table string, n int) {
	if n <= 1 {
		return
	}
	if m.Duplicates == nil {
		m.Duplicates = make(map[string]int)
	}
	m.Duplicates[table] = n
}

// Join matches a single base row against unindexed side tables
func Join(base warehouse.RawRow, hist, trend, market []warehouse.RawRow) Match {
	return NewJoiner(&warehouse.Tables{
		HistoricalContext: hist,
		TrendAnalysis:     trend,
		MarketRankings:    market,
	}).Match(base)
}

func eventKey(row warehouse.RawRow) string {
	return strings.TrimSpace(row.String("EVENT_ID", ""))
}
