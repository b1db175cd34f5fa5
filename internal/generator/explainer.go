package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
	"github.com/sells-group/bankquery/pkg/llm"
)

// Explainer renders execution results as prose. Failures here are cosmetic:
// any model error falls back to a deterministic template, and terminal-error
// plans never reach the model at all.
type Explainer struct {
	llm   llm.Client
	vocab *ontology.Vocabulary

	// Temperature for prose generation; explanation text tolerates more
	// variety than plan JSON.
	Temperature float64
	MaxTokens   int64
}

// NewExplainer creates an Explainer over the same generator capability.
func NewExplainer(client llm.Client, vocab *ontology.Vocabulary) *Explainer {
	return &Explainer{llm: client, vocab: vocab, Temperature: 0.3, MaxTokens: 512}
}

const explainSystem = `You are a banking analytics explanation assistant.
Given a query plan and its execution results, produce a clear, concise explanation.
Cover: what was asked, key terms and their definitions, assumptions made, and any
safety notes. Keep it under 300 words. Do NOT output JSON.`

// Explain never fails; it degrades to the template on any model problem.
func (e *Explainer) Explain(ctx context.Context, plan *model.QueryPlan, result *model.ExecutionResult) string {
	if plan.IsError() {
		return fmt.Sprintf("**Error:** %s\n\nThe system was unable to produce a valid query plan.",
			plan.Error.Message)
	}

	if e.llm != nil {
		if text, err := e.modelExplanation(ctx, plan, result); err == nil && strings.TrimSpace(text) != "" {
			return text
		} else if err != nil {
			zap.L().Debug("explainer: falling back to template", zap.Error(err))
		}
	}

	return e.templateExplanation(plan, result)
}

func (e *Explainer) modelExplanation(ctx context.Context, plan *model.QueryPlan, result *model.ExecutionResult) (string, error) {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return "", err
	}

	user := fmt.Sprintf(
		"Query plan:\n%s\n\nSummary: %s\nResult rows: %d\nSafety notes: %s\n\nProduce a clear explanation.",
		planJSON, summaryJSON, len(result.Rows), strings.Join(result.SafetyNotes, " | "),
	)

	return e.llm.Generate(ctx, llm.GenerateRequest{
		System:      explainSystem,
		User:        user,
		Temperature: e.Temperature,
		MaxTokens:   e.MaxTokens,
	})
}

func (e *Explainer) templateExplanation(plan *model.QueryPlan, result *model.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s Analysis\n\n", plan.Domain)
	fmt.Fprintf(&b, "**Intent:** %s\n", plan.Intent)
	fmt.Fprintf(&b, "**Dataset:** %s\n", plan.Dataset)
	fmt.Fprintf(&b, "**Metrics computed:** %s\n", joinMetrics(plan.Metrics))
	fmt.Fprintf(&b, "**Results returned:** %d rows\n\n", len(result.Rows))

	if e.vocab != nil && len(plan.Metrics) > 0 {
		b.WriteString("### Terms Used\n")
		for _, m := range plan.Metrics {
			if def, ok := e.vocab.Metric(m); ok {
				fmt.Fprintf(&b, "- **%s** (%s): %s\n", def.Label, def.ID, def.Formula)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("### Assumptions\n")
	if len(plan.Filters) > 0 {
		fmt.Fprintf(&b, "- Filters applied: %d condition(s)\n", len(plan.Filters))
		for _, f := range plan.Filters {
			fmt.Fprintf(&b, "  - %s %s %v\n", f.Field, f.Op, f.Value)
		}
	}
	if plan.TimeRange != nil {
		fmt.Fprintf(&b, "- Time range: %s to %s\n", plan.TimeRange.Start, plan.TimeRange.End)
	} else {
		b.WriteString("- No time range filter applied (all available data used)\n")
	}
	b.WriteString("\n")

	if len(result.Summary) > 0 {
		b.WriteString("### Summary\n")
		for _, k := range sortedKeys(result.Summary) {
			fmt.Fprintf(&b, "- %s: %v\n", k, result.Summary[k])
		}
		b.WriteString("\n")
	}

	if len(result.SafetyNotes) > 0 {
		b.WriteString("### Safety Notes\n")
		for _, note := range result.SafetyNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func joinMetrics(metrics []model.Metric) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
