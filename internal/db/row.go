package db

import (
	"strconv"
	"time"
)

// Row is one materialized result row: column names in the order the backend
// reported them, with the value the driver produced for each.
//
// VALUES ARE NOT COERCED:
// What you get back is what the driver scanned. Integers come back as int64,
// reals as float64, text as string, NULL as nil. Timestamps are the one
// place the two families differ: SQLite hands back ISO-8601 text, PostgreSQL
// a time.Time. Use Time/NullTime, which accept both, instead of asserting.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a Row from parallel column and value slices.
// Mostly useful for fakes in tests.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names in result order.
func (r Row) Columns() []string {
	return r.columns
}

// Value returns the raw value for col and whether the column exists.
func (r Row) Value(col string) (any, bool) {
	for i, c := range r.columns {
		if c == col {
			return r.values[i], true
		}
	}
	return nil, false
}

// Get returns the raw value for col, or nil when the column is absent.
func (r Row) Get(col string) any {
	v, _ := r.Value(col)
	return v
}

// IsNull reports whether col is NULL (or missing).
func (r Row) IsNull(col string) bool {
	return r.Get(col) == nil
}

// Map copies the row into a plain map. Column order is lost.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// String returns col as text, or "" when it is NULL or missing.
func (r Row) String(col string) string {
	switch v := r.Get(col).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Int64 returns col as an integer. Booleans become 0/1; NULL becomes 0.
func (r Row) Int64(col string) int64 {
	switch v := r.Get(col).(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// NullFloat64 returns the value of col and false when it is NULL.
func (r Row) NullFloat64(col string) (float64, bool) {
	switch v := r.Get(col).(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Float64 is NullFloat64 with NULL read as 0.
func (r Row) Float64(col string) float64 {
	f, _ := r.NullFloat64(col)
	return f
}

// timeLayouts are tried in order when a timestamp comes back as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// NullTime decodes col as a UTC timestamp. It returns false for NULL and
// for text it cannot parse.
func (r Row) NullTime(col string) (time.Time, bool) {
	var s string
	switch v := r.Get(col).(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Time is NullTime without the flag; NULL decodes to the zero time.
func (r Row) Time(col string) time.Time {
	t, _ := r.NullTime(col)
	return t
}
