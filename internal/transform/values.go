package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/raw"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.999999"
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// requireColumns fails unless every column appears in at least one row.
func requireColumns(table string, batch raw.Batch, cols ...string) error {
	for _, col := range cols {
		if !hasColumn(batch, col) {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, table, col)
		}
	}
	return nil
}

func hasColumn(batch raw.Batch, col string) bool {
	for _, rec := range batch {
		if _, ok := rec[col]; ok {
			return true
		}
	}
	return false
}

// getter reads typed columns from one record. The first coercion failure
// is kept in err and later reads return zero values.
type getter struct {
	table string
	row   int
	rec   raw.Record
	err   error
}

func newGetter(table string, row int, rec raw.Record) *getter {
	return &getter{table: table, row: row, rec: rec}
}

func (g *getter) fail(col string, v any, reason string) {
	if g.err == nil {
		g.err = fmt.Errorf("%w: %s row %d column %s (%v): %s", ErrInvalidValue, g.table, g.row, col, v, reason)
	}
}

func (g *getter) value(col string) (any, bool) {
	v, ok := g.rec[col]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (g *getter) int(col string) int64 {
	v, ok := g.value(col)
	if !ok {
		g.fail(col, nil, "null")
		return 0
	}
	n, err := toInt(v)
	if err != nil {
		g.fail(col, v, err.Error())
	}
	return n
}

func (g *getter) optInt(col string) *int64 {
	v, ok := g.value(col)
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		g.fail(col, v, err.Error())
		return nil
	}
	return &n
}

func (g *getter) str(col string) string {
	v, ok := g.value(col)
	if !ok {
		g.fail(col, nil, "null")
		return ""
	}
	return toString(v)
}

func (g *getter) optStr(col string) *string {
	v, ok := g.value(col)
	if !ok {
		return nil
	}
	s := toString(v)
	return &s
}

func (g *getter) float(col string) float64 {
	v, ok := g.value(col)
	if !ok {
		g.fail(col, nil, "null")
		return 0
	}
	f, err := toFloat(v)
	if err != nil {
		g.fail(col, v, err.Error())
	}
	return f
}

// money reads a monetary amount rounded to two decimal places.
func (g *getter) money(col string) float64 {
	return round2(g.float(col))
}

func (g *getter) bool(col string) bool {
	v, ok := g.value(col)
	if !ok {
		g.fail(col, nil, "null")
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			g.fail(col, v, "not a boolean")
		}
		return parsed
	}
	g.fail(col, v, "not a boolean")
	return false
}

func (g *getter) timestamp(col string) time.Time {
	v, ok := g.value(col)
	if !ok {
		g.fail(col, nil, "null")
		return time.Time{}
	}
	t, err := parseTimestamp(v)
	if err != nil {
		g.fail(col, v, err.Error())
	}
	return t
}

// date reads a date or timestamp column as YYYY-MM-DD.
func (g *getter) date(col string) string {
	t := g.timestamp(col)
	if g.err != nil {
		return ""
	}
	return t.Format(dateLayout)
}

// splitTimestamp reads a timestamp column as separate date and time of day.
func (g *getter) splitTimestamp(col string) (string, string) {
	t := g.timestamp(col)
	if g.err != nil {
		return "", ""
	}
	return t.Format(dateLayout), t.Format(timeLayout)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return i, nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

// floatToInt accepts whole numbers that fit in int64. float64(MaxInt64)
// rounds up to 2^63, so the upper bound is exclusive.
func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of int64 range")
	}
	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return f, nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	}
	return fmt.Sprint(v)
}

func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a timestamp")
}

// round2 rounds money on the binary float, so halves that are not exact in
// base 2 go down (2.675 becomes 2.67). The loaded warehouse rows depend on
// this matching the figures the pipeline has always produced; do not switch
// to decimal rounding.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
