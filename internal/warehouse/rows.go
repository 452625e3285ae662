package warehouse

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Table names, used as keys in logs, metrics and duplicate reports
const (
	TableBaseEvents        = "base_events"
	TableHistoricalContext = "historical_context"
	TableTrendAnalysis     = "trend_analysis"
	TableMarketRankings    = "market_rankings"
)

// RawRow is one warehouse row keyed by UPPERCASE column name.
// All accessors are safe on a nil row.
type RawRow map[string]any

// Tables groups the rows of the four views
type Tables struct {
	BaseEvents        []RawRow `json:"base_events"`
	HistoricalContext []RawRow `json:"historical_context"`
	TrendAnalysis     []RawRow `json:"trend_analysis"`
	MarketRankings    []RawRow `json:"market_rankings"`
}

// Counts returns the row count per table
func (t *Tables) Counts() map[string]int {
	if t == nil {
		return map[string]int{}
	}
	return map[string]int{
		TableBaseEvents:        len(t.BaseEvents),
		TableHistoricalContext: len(t.HistoricalContext),
		TableTrendAnalysis:     len(t.TrendAnalysis),
		TableMarketRankings:    len(t.MarketRankings),
	}
}

// Has reports whether col is present and non-null
func (r RawRow) Has(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return false
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return false
	}
	return true
}

// String returns col rendered as text, or def when absent
func (r RawRow) String(col, def string) string {
	if !r.Has(col) {
		return def
	}
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return def
	}
}

// Float returns col as float64, or def when absent or not numeric
func (r RawRow) Float(col string, def float64) float64 {
	if !r.Has(col) {
		return def
	}
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string, []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.String(col, "")), 64)
		if err != nil || math.IsNaN(f) {
			return def
		}
		return f
	default:
		return def
	}
}

// Int returns col as int, or def when absent or not numeric. Floats truncate.
func (r RawRow) Int(col string, def int) int {
	if !r.Has(col) {
		return def
	}
	switch v := r[col].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string, []byte:
		s := strings.TrimSpace(r.String(col, ""))
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	f := r.Float(col, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(f)
}

// Bool returns col as bool, or def when absent or not coercible
func (r RawRow) Bool(col string, def bool) bool {
	if !r.Has(col) {
		return def
	}
	switch v := r[col].(type) {
	case bool:
		return v
	case string, []byte:
		b, err := strconv.ParseBool(strings.TrimSpace(r.String(col, "")))
		if err != nil {
			return def
		}
		return b
	}
	f := r.Float(col, math.NaN())
	if math.IsNaN(f) {
		return def
	}
	return f != 0
}
