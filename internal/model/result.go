package model

// Row is a single result record. Keys depend on the metric computed.
type Row map[string]any

// MetricError is a structured per-metric execution failure. Other metrics
// in the same plan may still have computed normally.
type MetricError struct {
	Metric  Metric `json:"metric"`
	Message string `json:"message"`
}

// ExecutionResult is the executor's output for one validated plan.
type ExecutionResult struct {
	Rows        []Row          `json:"results"`
	Summary     map[string]any `json:"summary"`
	SafetyNotes []string       `json:"safety_notes,omitempty"`
	Errors      []MetricError  `json:"errors,omitempty"`
}

// Answer is the pipeline's final response object: validated plan, computed
// results, and the (cosmetic) explanation.
type Answer struct {
	Prompt      string           `json:"prompt"`
	Plan        *QueryPlan       `json:"query_plan"`
	Result      *ExecutionResult `json:"result"`
	Explanation string           `json:"explanation"`
	RepairCount int              `json:"repair_count"`
	Trace       []string         `json:"trace,omitempty"`
}
