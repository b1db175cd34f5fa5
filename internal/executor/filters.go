package executor

import (
	"fmt"
	"strings"

	"github.com/sells-group/bankquery/internal/model"
)

// dateField names the column used for time-range matching per dataset.
var dateField = map[model.Dataset]string{
	model.DatasetInterest:     "date",
	model.DatasetLoans:        "last_updated",
	model.DatasetLiquidity:    "month",
	model.DatasetTransactions: "date",
}

func applyFilters(rows []model.Row, filters []model.Filter) []model.Row {
	if len(filters) == 0 {
		return rows
	}
	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			if !matchFilter(row, f) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func matchFilter(row model.Row, f model.Filter) bool {
	got, ok := row[f.Field]
	if !ok {
		return false
	}

	switch f.Op {
	case model.OpEq:
		return looseEqual(got, f.Value)
	case model.OpNe:
		return !looseEqual(got, f.Value)
	case model.OpGt, model.OpGe, model.OpLt, model.OpLe:
		a, aok := toFloat(got)
		b, bok := toFloat(f.Value)
		if !aok || !bok {
			return false
		}
		switch f.Op {
		case model.OpGt:
			return a > b
		case model.OpGe:
			return a >= b
		case model.OpLt:
			return a < b
		default:
			return a <= b
		}
	case model.OpIn:
		items, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if looseEqual(got, item) {
				return true
			}
		}
		return false
	case model.OpContains:
		gs, gok := got.(string)
		vs, vok := f.Value.(string)
		if !gok || !vok {
			return false
		}
		return strings.Contains(strings.ToLower(gs), strings.ToLower(vs))
	default:
		return false
	}
}

// looseEqual compares values across the numeric representations JSON decoding
// produces. Booleans and strings compare directly.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// applyTimeRange keeps rows whose date field falls inside [start, end]. Field
// values shorter than a full date, such as liquidity's "YYYY-MM" months, are
// compared against the range truncated to the same length, so a month matches
// when any day of it falls inside the range.
func applyTimeRange(rows []model.Row, ds model.Dataset, tr *model.TimeRange) []model.Row {
	if tr == nil || tr.Start == "" || tr.End == "" {
		return rows
	}
	field := dateField[ds]
	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		val, ok := row[field].(string)
		if !ok || val == "" {
			continue
		}
		start, end := tr.Start, tr.End
		if len(val) < len(start) {
			start = start[:len(val)]
		}
		if len(val) < len(end) {
			end = end[:len(val)]
		}
		if val >= start && val <= end {
			out = append(out, row)
		}
	}
	return out
}

// groupRows partitions rows by the given dimensions, preserving the order in
// which each group key is first seen.
func groupRows(rows []model.Row, dims []string) ([]string, map[string][]model.Row) {
	keys := make([]string, 0)
	groups := make(map[string][]model.Row)
	for _, row := range rows {
		key := groupKey(row, dims)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	return keys, groups
}

func groupKey(row model.Row, dims []string) string {
	parts := make([]string, len(dims))
	for i, dim := range dims {
		parts[i] = fmt.Sprintf("%v", row[dim])
	}
	return strings.Join(parts, "\x1f")
}

// groupValues recovers the per-dimension values for a group from its first row.
func groupValues(row model.Row, dims []string) map[string]any {
	out := make(map[string]any, len(dims))
	for _, dim := range dims {
		out[dim] = row[dim]
	}
	return out
}
