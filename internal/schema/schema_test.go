package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/model"
)

func validObject() map[string]any {
	return map[string]any{
		"domain":  "Finance",
		"intent":  "net interest income for Q1 2025",
		"dataset": "interest",
		"metrics": []any{"NII"},
	}
}

func TestValidateObjectValid(t *testing.T) {
	assert.Empty(t, ValidateObject(validObject()))
}

func TestValidateObjectCollectsAllViolations(t *testing.T) {
	obj := map[string]any{
		"domain":  "Accounting",
		"intent":  float64(123),
		"dataset": "ledger",
		"metrics": []any{"EBITDA"},
	}

	v := ValidateObject(obj)
	require.Len(t, v, 4)
	assert.Contains(t, v[0], "domain")
	assert.Contains(t, v[1], "intent")
	assert.Contains(t, v[2], "dataset")
	assert.Contains(t, v[3], "metrics[0]")
}

func TestValidateObjectTypeMismatchIsSchemaNotParse(t *testing.T) {
	res := ParseAndValidate(`{"domain": "Finance", "intent": 123, "dataset": "interest", "metrics": ["NII"]}`)
	assert.Empty(t, res.ParseErr)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0], "intent")
}

func TestValidateObjectDatasetMetricConsistency(t *testing.T) {
	obj := validObject()
	obj["dataset"] = "loans"

	v := ValidateObject(obj)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "not the home dataset")

	// One matching metric is enough.
	obj["metrics"] = []any{"ECL"}
	assert.Empty(t, ValidateObject(obj))
}

func TestValidateObjectEmptyMetrics(t *testing.T) {
	obj := validObject()
	obj["metrics"] = []any{}

	v := ValidateObject(obj)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "must not be empty")
}

func TestValidateObjectTimeRange(t *testing.T) {
	obj := validObject()
	obj["time_range"] = map[string]any{"start": "Q1 2025", "end": "2025-03-31"}
	v := ValidateObject(obj)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "time_range.start")

	obj["time_range"] = map[string]any{"start": "2025-03-31", "end": "2025-01-01"}
	v = ValidateObject(obj)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "is after end")
}

func TestValidateObjectFilterOp(t *testing.T) {
	obj := validObject()
	obj["filters"] = []any{
		map[string]any{"field": "region", "op": "~=", "value": "UK"},
		map[string]any{"field": "region", "op": "="},
	}

	v := ValidateObject(obj)
	require.Len(t, v, 2)
	assert.Contains(t, v[0], "filters[0].op")
	assert.Contains(t, v[1], "filters[1]")
}

func TestValidatePlanIdempotent(t *testing.T) {
	plan := &model.QueryPlan{
		Domain:  model.DomainFinance,
		Intent:  "NII",
		Dataset: model.DatasetInterest,
		Metrics: []model.Metric{model.MetricNII},
	}
	for i := 0; i < 3; i++ {
		assert.Empty(t, ValidatePlan(plan))
	}
}

func TestParseAndValidateStripsFences(t *testing.T) {
	raw := "```json\n" + `{"domain":"Finance","intent":"nii","dataset":"interest","metrics":["NII"]}` + "\n```"
	res := ParseAndValidate(raw)
	assert.True(t, res.Valid())
}

func TestParseAndValidateNonObject(t *testing.T) {
	res := ParseAndValidate(`["NII"]`)
	assert.Empty(t, res.ParseErr)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0], "expected a JSON object, got array")
}

func TestParseAndValidateGarbage(t *testing.T) {
	res := ParseAndValidate("the answer is probably NII")
	assert.NotEmpty(t, res.ParseErr)
	assert.False(t, res.Valid())
}

func TestRepairTruncatedMidArray(t *testing.T) {
	res := ParseAndValidate(`{"domain":"Finance","intent":"nii","dataset":"interest","metrics":["NII"`)
	assert.Empty(t, res.ParseErr)
	assert.True(t, res.Valid(), "violations: %v", res.Violations)
	assert.Equal(t, model.MetricNII, res.Plan.Metrics[0])
}

func TestRepairTruncatedMidString(t *testing.T) {
	res := ParseAndValidate(`{"domain":"Finance","intent":"nii","dataset":"interest","metrics":["NII"],"group_by":["produ`)
	assert.Empty(t, res.ParseErr)
	assert.True(t, res.Valid(), "violations: %v", res.Violations)
}

func TestRepairTruncatedDanglingKey(t *testing.T) {
	res := ParseAndValidate(`{"domain":"Finance","intent":"nii","dataset":"interest","metrics":["NII"],"group_by":`)
	assert.Empty(t, res.ParseErr)
	assert.True(t, res.Valid(), "violations: %v", res.Violations)
}

func TestBuildErrorPlanIsSchemaValid(t *testing.T) {
	plan := BuildErrorPlan("Finance", "interest", model.ErrTypeParse, "response was not valid JSON")
	assert.Empty(t, ValidatePlan(plan))
	require.NoError(t, Check(plan))
	assert.True(t, plan.IsError())
	assert.True(t, plan.Error.RepairAttempted)
}

func TestBuildErrorPlanSanitizesInputs(t *testing.T) {
	plan := BuildErrorPlan("Nonsense", "ledger", "weird_error", "boom")
	assert.Empty(t, ValidatePlan(plan))
	assert.Equal(t, model.DomainFinance, plan.Domain)
	assert.Equal(t, model.DatasetInterest, plan.Dataset)
	assert.Equal(t, model.ErrTypeSchema, plan.Error.Type)
}

func TestJSONContainsVocabularies(t *testing.T) {
	s := JSON()
	for _, m := range model.Metrics {
		assert.Contains(t, s, string(m))
	}
	for _, d := range model.Datasets {
		assert.Contains(t, s, string(d))
	}
	assert.True(t, strings.Contains(s, "repair_attempted"))
}

func TestCheckRejectsBadEnum(t *testing.T) {
	obj := validObject()
	obj["domain"] = "Accounting"
	assert.Error(t, Check(obj))
}
