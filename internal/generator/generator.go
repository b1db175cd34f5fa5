// Package generator builds the prompts for the two external text-generation
// boundaries: plan completion and result explanation. Raw model output is
// returned untouched; the controller owns all trust decisions.
package generator

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/schema"
	"github.com/sells-group/bankquery/pkg/llm"
)

// Config sets determinism and length for plan generation. PlanTemperature
// stays low because the output must parse; repairs run stricter still, in
// the controller's own config.
type Config struct {
	PlanTemperature float64
	MaxTokens       int64
}

// DefaultConfig matches the production settings for a small local model.
func DefaultConfig() Config {
	return Config{PlanTemperature: 0.1, MaxTokens: 1024}
}

// Generator completes a plan skeleton into full candidate-plan text.
type Generator struct {
	llm llm.Client
	cfg Config
}

// New creates a Generator. Zero-value config fields take defaults.
func New(client llm.Client, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.PlanTemperature <= 0 {
		cfg.PlanTemperature = def.PlanTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Generator{llm: client, cfg: cfg}
}

const planSystemPreamble = `You are a banking analytics query planner.
You MUST output ONLY a single valid JSON object conforming to the JSON Schema below.
Do NOT output any text, markdown, or explanation, ONLY the JSON object.
Do NOT output any query language or code, ONLY JSON.

Guidelines:
- domain must be one of: Finance, Risk, Treasury, AML
- dataset must be one of: interest, loans, liquidity, transactions
- metrics must be from: NII, NIM, ECL, NSFR, STRUCTURING_FLAG
- filters use field/op/value where op is one of: =, !=, >, <, >=, <=, in, contains
- all date strings must be YYYY-MM-DD
- if you cannot answer, set intent to "error" and include an error object

JSON Schema:
`

// GeneratePlan asks the model to complete the skeleton into a full
// candidate plan and returns the raw text. The caller must treat the text
// as untrusted.
func (g *Generator) GeneratePlan(ctx context.Context, prompt string, skeleton *model.QueryPlan) (string, error) {
	skeletonJSON, err := json.Marshal(skeleton)
	if err != nil {
		return "", eris.Wrap(err, "generator: marshal skeleton")
	}

	user := "User prompt: " + prompt + "\n\n" +
		"A deterministic pre-pass has produced this partial plan skeleton. Use it as " +
		"guidance and output a complete, schema-valid JSON QueryPlan object. Be concise, " +
		"output ONLY the JSON:\n\n" + string(skeletonJSON)

	raw, err := g.llm.Generate(ctx, llm.GenerateRequest{
		System:      planSystemPreamble + schema.JSON(),
		User:        user,
		Temperature: g.cfg.PlanTemperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "generator: plan completion")
	}
	return raw, nil
}
