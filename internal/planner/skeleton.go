// Package planner deterministically extracts the structural parameters of a
// QueryPlan from prompt text before any generation call. Keeping this out of
// the model keeps the generator's completion task bounded and low-entropy.
// Nothing here ever fails: an absent pattern leaves its field empty.
package planner

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
)

var (
	quarterRe  = regexp.MustCompile(`(?i)Q([1-4])\s*(\d{4})`)
	lastDaysRe = regexp.MustCompile(`(?i)(?:last|past)\s+(\d+)\s+days?`)
	monthRe    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{4})\b`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// regionTokens maps recognized free-text region tokens to canonical values.
// Ordered so longer tokens match before their abbreviations; the short codes
// must stand alone so "customer" never reads as US.
var regionTokens = []struct {
	re     *regexp.Regexp
	region string
}{
	{regexp.MustCompile(`united kingdom`), "UK"},
	{regexp.MustCompile(`united states`), "US"},
	{regexp.MustCompile(`europe`), "EU"},
	{regexp.MustCompile(`\buk\b`), "UK"},
	{regexp.MustCompile(`\beu\b`), "EU"},
	{regexp.MustCompile(`\bus\b`), "US"},
}

var productKeywords = []string{"mortgage", "sme loan", "credit card"}

// groupDimensions is the allowed grouping set per dataset. A "by X" phrase
// only populates group_by when X is permitted for the resolved dataset.
var groupDimensions = map[model.Dataset][]string{
	model.DatasetInterest:     {"product", "region", "month"},
	model.DatasetLoans:        {"product", "region", "customer_id"},
	model.DatasetLiquidity:    {"region", "month"},
	model.DatasetTransactions: {"customer_id", "account_id", "region"},
}

// Config anchors relative date phrases. ReferenceDate is the "today" used
// for "last N days"; zero means time.Now in UTC.
type Config struct {
	ReferenceDate time.Time
}

// BuildSkeleton produces the partial QueryPlan for a prompt given the term
// resolver's output. Domain, dataset, and metrics are always populated;
// filters, group_by, time_range, and post_processing are best-effort.
func BuildSkeleton(prompt string, res ontology.Resolution, cfg Config) *model.QueryPlan {
	intent := prompt
	if len(intent) > 200 {
		intent = intent[:200]
	}

	plan := &model.QueryPlan{
		Domain:  res.Domain,
		Intent:  intent,
		Dataset: res.Dataset,
		Metrics: res.Metrics,
	}

	lower := strings.ToLower(prompt)

	plan.Filters = detectFilters(lower, plan)
	plan.TimeRange = detectTimeRange(prompt, lower, cfg)
	plan.GroupBy = detectGroupBy(lower, res.Dataset)
	plan.PostProcessing = defaultPostProcessing(plan)

	return plan
}

func detectFilters(lower string, plan *model.QueryPlan) []model.Filter {
	var filters []model.Filter

	for _, rt := range regionTokens {
		if rt.re.MatchString(lower) {
			filters = append(filters, model.Filter{Field: "region", Op: model.OpEq, Value: rt.region})
			break
		}
	}

	for _, p := range productKeywords {
		if strings.Contains(lower, p) {
			filters = append(filters, model.Filter{Field: "product", Op: model.OpEq, Value: titleCase(p)})
			break
		}
	}

	// Structuring detection only looks at cash transactions.
	if plan.HasMetric(model.MetricStructuring) {
		filters = append(filters, model.Filter{Field: "cash", Op: model.OpEq, Value: true})
	}

	// IFRS 9 stage-migration phrasing pins both stage fields.
	if plan.HasMetric(model.MetricECL) &&
		strings.Contains(lower, "stage 1") && strings.Contains(lower, "stage 2") {
		filters = append(filters,
			model.Filter{Field: "stage_ifrs9", Op: model.OpEq, Value: 2},
			model.Filter{Field: "previous_stage", Op: model.OpEq, Value: 1},
		)
	}

	return filters
}

func detectTimeRange(prompt, lower string, cfg Config) *model.TimeRange {
	if m := lastDaysRe.FindStringSubmatch(lower); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil && days > 0 {
			end := cfg.ReferenceDate
			if end.IsZero() {
				end = time.Now().UTC()
			}
			start := end.AddDate(0, 0, -days)
			return &model.TimeRange{
				Start: start.Format("2006-01-02"),
				End:   end.Format("2006-01-02"),
			}
		}
	}

	if m := quarterRe.FindStringSubmatch(prompt); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		startMonth := time.Month((q-1)*3 + 1)
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, -1)
		return &model.TimeRange{
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		}
	}

	if m := monthRe.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[2])
		start := time.Date(year, monthIndex[m[1]], 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return &model.TimeRange{
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		}
	}

	return nil
}

func detectGroupBy(lower string, dataset model.Dataset) []string {
	allowed := groupDimensions[dataset]

	var groups []string
	add := func(dim string) {
		for _, a := range allowed {
			if a != dim {
				continue
			}
			for _, g := range groups {
				if g == dim {
					return
				}
			}
			groups = append(groups, dim)
		}
	}

	if strings.Contains(lower, "by product") || strings.Contains(lower, "per product") {
		add("product")
	}
	if strings.Contains(lower, "by region") || strings.Contains(lower, "per region") {
		add("region")
	}
	if strings.Contains(lower, "monthly") || strings.Contains(lower, "month") || strings.Contains(lower, "trend") {
		add("month")
	}
	if strings.Contains(lower, "by customer") || strings.Contains(lower, "per customer") {
		add("customer_id")
	}
	if strings.Contains(lower, "by account") || strings.Contains(lower, "per account") {
		add("account_id")
	}
	return groups
}

func defaultPostProcessing(plan *model.QueryPlan) *model.PostProcessing {
	if plan.HasMetric(model.MetricNSFR) {
		threshold := 100.0
		return &model.PostProcessing{
			FlagThreshold: &threshold,
			SortBy:        "month",
			SortOrder:     "asc",
		}
	}
	if plan.HasMetric(model.MetricStructuring) {
		return &model.PostProcessing{WindowDays: 7, MinCount: 2}
	}
	return nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "sme" {
			words[i] = "SME"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
