package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
)

func testResult() *model.ExecutionResult {
	return &model.ExecutionResult{
		Rows: []model.Row{
			{"product": "Mortgage", "nii": 2279000.0},
		},
		Summary:     map[string]any{"rows_matched": 9, "nii_overall": 6011000.0},
		SafetyNotes: []string{"Figures are illustrative."},
	}
}

func TestExplainErrorPlanSkipsModel(t *testing.T) {
	client := &recordingLLM{text: "should never be called"}
	exp := NewExplainer(client, nil)

	plan := &model.QueryPlan{
		Domain:  model.DomainFinance,
		Intent:  "error",
		Dataset: model.DatasetInterest,
		Error: &model.PlanError{
			Type:            model.ErrTypeParse,
			Message:         "plan text was not valid JSON",
			RepairAttempted: true,
		},
	}

	text := exp.Explain(context.Background(), plan, &model.ExecutionResult{})
	assert.Contains(t, text, "plan text was not valid JSON")
	assert.Contains(t, text, "unable to produce a valid query plan")
	assert.Empty(t, client.reqs, "terminal plans must not reach the model")
}

func TestExplainUsesModelText(t *testing.T) {
	client := &recordingLLM{text: "NII for Q1 2025 was 6,011,000 across three products."}
	exp := NewExplainer(client, nil)

	text := exp.Explain(context.Background(), testSkeleton(), testResult())
	assert.Equal(t, "NII for Q1 2025 was 6,011,000 across three products.", text)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Contains(t, req.User, "Result rows: 1")
	assert.Contains(t, req.User, "Figures are illustrative.")
}

func TestExplainFallsBackOnModelError(t *testing.T) {
	vocab, err := ontology.Load()
	require.NoError(t, err)

	client := &recordingLLM{err: errors.New("gateway down")}
	exp := NewExplainer(client, vocab)

	plan := testSkeleton()
	plan.TimeRange = &model.TimeRange{Start: "2025-01-01", End: "2025-03-31"}
	plan.Filters = []model.Filter{{Field: "region", Op: model.OpEq, Value: "UK"}}

	text := exp.Explain(context.Background(), plan, testResult())
	assert.Contains(t, text, "## Finance Analysis")
	assert.Contains(t, text, "Net Interest Income")
	assert.Contains(t, text, "2025-01-01 to 2025-03-31")
	assert.Contains(t, text, "region = UK")
	assert.Contains(t, text, "nii_overall")
	assert.Contains(t, text, "Figures are illustrative.")
}

func TestExplainFallsBackOnEmptyModelText(t *testing.T) {
	client := &recordingLLM{text: "   \n"}
	exp := NewExplainer(client, nil)

	text := exp.Explain(context.Background(), testSkeleton(), testResult())
	assert.Contains(t, text, "## Finance Analysis")
	assert.Contains(t, text, "**Results returned:** 1 rows")
}

func TestExplainNilClientUsesTemplate(t *testing.T) {
	exp := NewExplainer(nil, nil)

	text := exp.Explain(context.Background(), testSkeleton(), testResult())
	assert.Contains(t, text, "**Metrics computed:** NII")
	assert.Contains(t, text, "No time range filter applied")
}
