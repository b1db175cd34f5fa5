// Package schema owns the QueryPlan contract: the JSON Schema artifact
// embedded into generator prompts, full-violation validation of untrusted
// plan objects, the truncated-JSON recovery heuristic, and construction of
// terminal-error plans that satisfy the same schema.
package schema

import (
	"encoding/json"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bankquery/internal/model"
)

// datePattern matches ISO calendar dates (YYYY-MM-DD).
const datePattern = `^\d{4}-\d{2}-\d{2}$`

// PlanSchema builds the Draft-7-equivalent JSON Schema for QueryPlan. The
// enum vocabularies are drawn from the model package so the schema, the
// validator, and the executor's dispatch table share one source of truth.
func PlanSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"domain", "intent", "dataset"},
		Properties: map[string]*jsonschema.Schema{
			"domain": {
				Type: "string",
				Enum: enumAny(model.Domains),
			},
			"intent": {
				Type:        "string",
				Description: "Echo of the user request, or \"error\" for a terminal-error plan.",
			},
			"dataset": {
				Type: "string",
				Enum: enumAny(model.Datasets),
			},
			"metrics": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string", Enum: enumAny(model.Metrics)},
			},
			"filters": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"field", "op", "value"},
					Properties: map[string]*jsonschema.Schema{
						"field": {Type: "string"},
						"op":    {Type: "string", Enum: enumAny(model.Ops)},
						"value": {},
					},
				},
			},
			"group_by": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"time_range": {
				Type:     "object",
				Required: []string{"start", "end"},
				Properties: map[string]*jsonschema.Schema{
					"start": {Type: "string", Pattern: datePattern},
					"end":   {Type: "string", Pattern: datePattern},
				},
			},
			"post_processing": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"flag_threshold": {Type: "number"},
					"sort_by":        {Type: "string"},
					"sort_order":     {Type: "string", Enum: []any{"asc", "desc"}},
					"window_days":    {Type: "integer"},
					"min_count":      {Type: "integer"},
				},
			},
			"error": {
				Type:     "object",
				Required: []string{"type", "message", "repair_attempted"},
				Properties: map[string]*jsonschema.Schema{
					"type":             {Type: "string", Enum: []any{model.ErrTypeParse, model.ErrTypeSchema}},
					"message":          {Type: "string"},
					"repair_attempted": {Type: "boolean"},
				},
			},
		},
	}
}

func enumAny[T ~string](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

var (
	resolveOnce sync.Once
	resolved    *jsonschema.Resolved
	resolveErr  error
	schemaJSON  string
)

func resolve() {
	resolveOnce.Do(func() {
		s := PlanSchema()
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			resolveErr = eris.Wrap(err, "schema: marshal")
			return
		}
		schemaJSON = string(b)
		resolved, resolveErr = s.Resolve(nil)
	})
}

// JSON returns the rendered schema for embedding in generator prompts.
func JSON() string {
	resolve()
	return schemaJSON
}

// Check validates an instance against the resolved JSON Schema artifact.
// The instance is round-tripped through JSON so typed plans and raw maps
// validate identically.
func Check(instance any) error {
	resolve()
	if resolveErr != nil {
		return resolveErr
	}
	b, err := json.Marshal(instance)
	if err != nil {
		return eris.Wrap(err, "schema: marshal instance")
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return eris.Wrap(err, "schema: unmarshal instance")
	}
	if err := resolved.Validate(v); err != nil {
		return eris.Wrap(err, "schema: check")
	}
	return nil
}
