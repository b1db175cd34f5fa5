package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/pkg/llm"
)

// recordingLLM captures the requests it receives and replays a fixed answer.
type recordingLLM struct {
	reqs []llm.GenerateRequest
	text string
	err  error
}

func (r *recordingLLM) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

func testSkeleton() *model.QueryPlan {
	return &model.QueryPlan{
		Domain:  model.DomainFinance,
		Intent:  "net interest income by product",
		Dataset: model.DatasetInterest,
		Metrics: []model.Metric{model.MetricNII},
		GroupBy: []string{"product"},
	}
}

func TestGeneratePlanPromptContents(t *testing.T) {
	client := &recordingLLM{text: `{"domain":"Finance"}`}
	gen := New(client, Config{})

	raw, err := gen.GeneratePlan(context.Background(), "NII by product", testSkeleton())
	require.NoError(t, err)
	assert.Equal(t, `{"domain":"Finance"}`, raw)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Contains(t, req.System, "ONLY the JSON object")
	assert.Contains(t, req.System, `"STRUCTURING_FLAG"`, "system prompt embeds the plan schema enums")
	assert.Contains(t, req.User, "NII by product")
	assert.Contains(t, req.User, `"dataset":"interest"`, "skeleton is serialized into the user prompt")
}

func TestGeneratePlanDefaults(t *testing.T) {
	client := &recordingLLM{text: "{}"}
	gen := New(client, Config{})

	_, err := gen.GeneratePlan(context.Background(), "q", testSkeleton())
	require.NoError(t, err)

	req := client.reqs[0]
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Equal(t, int64(1024), req.MaxTokens)
}

func TestGeneratePlanConfigOverrides(t *testing.T) {
	client := &recordingLLM{text: "{}"}
	gen := New(client, Config{PlanTemperature: 0.5, MaxTokens: 256})

	_, err := gen.GeneratePlan(context.Background(), "q", testSkeleton())
	require.NoError(t, err)

	req := client.reqs[0]
	assert.InDelta(t, 0.5, req.Temperature, 1e-9)
	assert.Equal(t, int64(256), req.MaxTokens)
}

func TestGeneratePlanClientError(t *testing.T) {
	client := &recordingLLM{err: errors.New("gateway timeout")}
	gen := New(client, Config{})

	_, err := gen.GeneratePlan(context.Background(), "q", testSkeleton())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan completion")
}
