// Package report exports computed answers as CSV and XLSX files.
package report

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sells-group/bankquery/internal/model"
)

// Table flattens result rows into an ordered header and string records.
// Columns appear in the order their keys are first seen across rows, so the
// layout is stable for a given result.
func Table(result *model.ExecutionResult) ([]string, [][]string) {
	var header []string
	seen := map[string]bool{}
	for _, row := range result.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	records := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		rec := make([]string, len(header))
		for i, k := range header {
			if v, ok := row[k]; ok {
				rec[i] = formatCell(v)
			}
		}
		records = append(records, rec)
	}
	return header, records
}

// summaryPairs returns summary entries sorted by key for stable output.
func summaryPairs(summary map[string]any) [][2]string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, formatCell(summary[k])})
	}
	return pairs
}

func formatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprintf("%v", n)
	}
}
