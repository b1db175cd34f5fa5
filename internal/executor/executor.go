package executor

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/bankquery/internal/model"
)

// Engine computes results for validated plans. All computation is local and
// deterministic; the same plan over the same data always yields the same
// result.
type Engine struct {
	data *Data
	log  *zap.Logger
}

func NewEngine(data *Data) *Engine {
	return &Engine{data: data, log: zap.L().Named("executor")}
}

// Execute evaluates the plan. Plans carrying an error object produce a result
// whose summary restates the error; no computation runs. Metric failures are
// reported per metric so one bad metric does not sink the rest.
func (e *Engine) Execute(plan *model.QueryPlan) *model.ExecutionResult {
	if plan.IsError() {
		return &model.ExecutionResult{
			Rows: []model.Row{},
			Summary: map[string]any{
				"error":      plan.Error.Message,
				"error_type": plan.Error.Type,
			},
		}
	}

	rows := e.data.Rows(plan.Dataset)
	rows = applyTimeRange(rows, plan.Dataset, plan.TimeRange)
	rows = applyFilters(rows, plan.Filters)

	result := &model.ExecutionResult{
		Rows:    []model.Row{},
		Summary: map[string]any{"rows_matched": len(rows)},
	}

	for _, metric := range plan.Metrics {
		if !model.ValidMetric(string(metric)) {
			result.Errors = append(result.Errors, model.MetricError{
				Metric:  metric,
				Message: fmt.Sprintf("unknown metric %q", metric),
			})
			continue
		}
		if metric.HomeDataset() != plan.Dataset {
			result.Errors = append(result.Errors, model.MetricError{
				Metric: metric,
				Message: fmt.Sprintf("metric %s requires dataset %s, plan targets %s",
					metric, metric.HomeDataset(), plan.Dataset),
			})
			continue
		}

		switch metric {
		case model.MetricNII, model.MetricNIM:
			e.runInterestMetric(metric, rows, plan, result)
		case model.MetricECL:
			e.runECL(rows, result)
		case model.MetricNSFR:
			e.runNSFR(rows, plan, result)
		case model.MetricStructuring:
			e.runStructuring(rows, plan, result)
		}
	}

	e.log.Debug("plan executed",
		zap.String("dataset", string(plan.Dataset)),
		zap.Int("rows_matched", len(rows)),
		zap.Int("result_rows", len(result.Rows)),
		zap.Int("metric_errors", len(result.Errors)))

	return result
}

func (e *Engine) runInterestMetric(metric model.Metric, rows []model.Row, plan *model.QueryPlan, result *model.ExecutionResult) {
	field := "nii"
	compute := computeNII
	if metric == model.MetricNIM {
		field = "nim"
		compute = computeNIM
	}

	if len(plan.GroupBy) == 0 {
		result.Summary[field] = compute(rows)
		return
	}

	keys, groups := groupRows(rows, plan.GroupBy)
	for _, key := range keys {
		group := groups[key]
		row := groupValues(group[0], plan.GroupBy)
		row[field] = compute(group)
		result.Rows = mergeRow(result.Rows, plan.GroupBy, row)
	}
	result.Summary[field+"_overall"] = compute(rows)
}

// mergeRow folds a computed metric value into an existing grouped row when the
// group dimensions match, so NII and NIM over the same grouping share rows.
func mergeRow(rows []model.Row, dims []string, row model.Row) []model.Row {
	for _, existing := range rows {
		if groupKey(existing, dims) == groupKey(row, dims) {
			for k, v := range row {
				existing[k] = v
			}
			return rows
		}
	}
	return append(rows, row)
}

func (e *Engine) runECL(rows []model.Row, result *model.ExecutionResult) {
	perLoan, total := computeECL(rows)
	result.Rows = append(result.Rows, perLoan...)
	result.Summary["total_ecl"] = total
	result.Summary["loans_count"] = len(perLoan)
	result.SafetyNotes = append(result.SafetyNotes,
		"Expected credit loss figures are point-in-time estimates from modelled PD, LGD and EAD inputs; they are not audited provisions.")
}

func (e *Engine) runNSFR(rows []model.Row, plan *model.QueryPlan, result *model.ExecutionResult) {
	flagThreshold := 100.0
	sortBy, sortOrder := "", "asc"
	if pp := plan.PostProcessing; pp != nil {
		if pp.FlagThreshold != nil {
			flagThreshold = *pp.FlagThreshold
		}
		if pp.SortBy != "" {
			sortBy = pp.SortBy
		}
		if pp.SortOrder != "" {
			sortOrder = pp.SortOrder
		}
	}

	breaches := 0
	for _, row := range rows {
		nr := computeNSFR(num(row, "available_stable_funding"), num(row, "required_stable_funding"), flagThreshold)
		if nr.breach {
			breaches++
		}
		result.Rows = append(result.Rows, model.Row{
			"month":  row["month"],
			"region": row["region"],
			"nsfr":   nr.nsfr,
			"breach": nr.breach,
		})
	}

	if sortBy != "" {
		sortRowsBy(result.Rows, sortBy, sortOrder)
	}

	result.Summary["total_months"] = len(rows)
	result.Summary["breach_months"] = breaches
	result.SafetyNotes = append(result.SafetyNotes,
		"NSFR is computed from reported funding balances; months below the flag threshold need review against the regulatory submission.")
}

func (e *Engine) runStructuring(rows []model.Row, plan *model.QueryPlan, result *model.ExecutionResult) {
	windowDays, minCount := 7, 2
	if pp := plan.PostProcessing; pp != nil {
		if pp.WindowDays > 0 {
			windowDays = pp.WindowDays
		}
		if pp.MinCount > 0 {
			minCount = pp.MinCount
		}
	}

	scanned := detectStructuring(rows, e.data, windowDays, minCount)
	flagged := 0
	for _, res := range scanned {
		if !res.flagged {
			continue
		}
		flagged++
		amounts := make([]float64, 0, len(res.deposits))
		dates := make([]string, 0, len(res.deposits))
		for _, dep := range res.deposits {
			amounts = append(amounts, num(dep, "amount"))
			if d, ok := dep["date"].(string); ok {
				dates = append(dates, d)
			}
		}
		sort.Strings(dates)
		result.Rows = append(result.Rows, model.Row{
			"account_id":     res.accountID,
			"customer_id":    res.customerID,
			"region":         res.region,
			"deposit_count":  len(res.deposits),
			"amounts":        amounts,
			"dates":          dates,
			"threshold_used": res.threshold,
		})
	}

	result.Summary["flagged_accounts"] = flagged
	result.Summary["window_days"] = windowDays
	result.Summary["min_count"] = minCount
	result.SafetyNotes = append(result.SafetyNotes,
		"Structuring flags are pattern indicators, not determinations of intent; flagged accounts require analyst review before any reporting obligation arises.")
}

func sortRowsBy(rows []model.Row, field, order string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := fmt.Sprintf("%v", rows[i][field])
		b := fmt.Sprintf("%v", rows[j][field])
		if order == "desc" {
			return a > b
		}
		return a < b
	})
}
