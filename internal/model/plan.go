package model

// Domain classifies a query into a banking business area.
type Domain string

const (
	DomainFinance  Domain = "Finance"
	DomainRisk     Domain = "Risk"
	DomainTreasury Domain = "Treasury"
	DomainAML      Domain = "AML"
)

// Dataset names one of the flat record collections the executor can read.
type Dataset string

const (
	DatasetInterest     Dataset = "interest"
	DatasetLoans        Dataset = "loans"
	DatasetLiquidity    Dataset = "liquidity"
	DatasetTransactions Dataset = "transactions"
)

// Metric is a canonical metric identifier from the fixed vocabulary.
type Metric string

const (
	MetricNII         Metric = "NII"
	MetricNIM         Metric = "NIM"
	MetricECL         Metric = "ECL"
	MetricNSFR        Metric = "NSFR"
	MetricStructuring Metric = "STRUCTURING_FLAG"
)

// HomeDataset returns the dataset a metric's formula reads. A plan is only
// resolvable when its dataset matches the home dataset of at least one
// requested metric.
func (m Metric) HomeDataset() Dataset {
	switch m {
	case MetricNII, MetricNIM:
		return DatasetInterest
	case MetricECL:
		return DatasetLoans
	case MetricNSFR:
		return DatasetLiquidity
	case MetricStructuring:
		return DatasetTransactions
	default:
		return ""
	}
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpGe       Op = ">="
	OpLe       Op = "<="
	OpIn       Op = "in"
	OpContains Op = "contains"
)

// Vocabulary sets. Kept as ordered slices so validation messages and the
// generated schema list values in a stable order.
var (
	Domains  = []Domain{DomainFinance, DomainRisk, DomainTreasury, DomainAML}
	Datasets = []Dataset{DatasetInterest, DatasetLoans, DatasetLiquidity, DatasetTransactions}
	Metrics  = []Metric{MetricNII, MetricNIM, MetricECL, MetricNSFR, MetricStructuring}
	Ops      = []Op{OpEq, OpNe, OpGt, OpLt, OpGe, OpLe, OpIn, OpContains}
)

// ValidDomain reports whether s is in the domain vocabulary.
func ValidDomain(s string) bool {
	for _, d := range Domains {
		if string(d) == s {
			return true
		}
	}
	return false
}

// ValidDataset reports whether s is in the dataset vocabulary.
func ValidDataset(s string) bool {
	for _, d := range Datasets {
		if string(d) == s {
			return true
		}
	}
	return false
}

// ValidMetric reports whether s is in the metric vocabulary.
func ValidMetric(s string) bool {
	for _, m := range Metrics {
		if string(m) == s {
			return true
		}
	}
	return false
}

// ValidOp reports whether s is in the operator set.
func ValidOp(s string) bool {
	for _, o := range Ops {
		if string(o) == s {
			return true
		}
	}
	return false
}

// Filter is a single field/op/value condition applied before grouping.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// TimeRange is an inclusive ISO calendar date range, start <= end.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Error types carried by a terminal-error plan.
const (
	ErrTypeParse  = "parse_error"
	ErrTypeSchema = "schema_error"
)

// PlanError marks a plan as terminal-error output of the repair loop.
type PlanError struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	RepairAttempted bool   `json:"repair_attempted"`
}

// PostProcessing tunes executor behavior per metric family. All fields are
// optional; the executor applies metric-specific defaults.
type PostProcessing struct {
	FlagThreshold *float64 `json:"flag_threshold,omitempty"`
	SortBy        string   `json:"sort_by,omitempty"`
	SortOrder     string   `json:"sort_order,omitempty"`
	WindowDays    int      `json:"window_days,omitempty"`
	MinCount      int      `json:"min_count,omitempty"`
}

// QueryPlan is the central artifact of the pipeline: the structured,
// schema-conforming representation of an analytics request. It is built
// empty by the planner, completed as untyped text by the generator,
// canonicalized by the controller, and consumed exactly once by the
// executor. Execution never mutates it.
type QueryPlan struct {
	Domain         Domain          `json:"domain"`
	Intent         string          `json:"intent"`
	Dataset        Dataset         `json:"dataset"`
	Metrics        []Metric        `json:"metrics,omitempty"`
	Filters        []Filter        `json:"filters,omitempty"`
	GroupBy        []string        `json:"group_by,omitempty"`
	TimeRange      *TimeRange      `json:"time_range,omitempty"`
	PostProcessing *PostProcessing `json:"post_processing,omitempty"`
	Error          *PlanError      `json:"error,omitempty"`
}

// IsError reports whether the plan is a terminal-error plan.
func (p *QueryPlan) IsError() bool {
	return p.Intent == "error" && p.Error != nil
}

// HasMetric reports whether the plan requests the given metric.
func (p *QueryPlan) HasMetric(m Metric) bool {
	for _, pm := range p.Metrics {
		if pm == m {
			return true
		}
	}
	return false
}
