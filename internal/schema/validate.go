package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/bankquery/internal/model"
)

var dateRe = regexp.MustCompile(datePattern)

// ValidateObject checks a parsed plan object against the plan contract and
// returns every violation found, in field order, as human-readable strings.
// An empty slice means the object is schema-valid.
func ValidateObject(obj map[string]any) []string {
	var v []string

	v = append(v, checkEnumField(obj, "domain", enumAny(model.Domains))...)

	intent, hasIntent := obj["intent"]
	if !hasIntent {
		v = append(v, "(root): missing required field 'intent'")
	} else if _, ok := intent.(string); !ok {
		v = append(v, fmt.Sprintf("intent: expected a string, got %s", jsonType(intent)))
	}

	v = append(v, checkEnumField(obj, "dataset", enumAny(model.Datasets))...)

	_, hasError := obj["error"]
	v = append(v, checkMetrics(obj, hasError)...)
	v = append(v, checkFilters(obj)...)
	v = append(v, checkGroupBy(obj)...)
	v = append(v, checkTimeRange(obj)...)
	v = append(v, checkPostProcessing(obj)...)
	v = append(v, checkErrorObject(obj)...)
	v = append(v, checkConsistency(obj)...)

	// Backstop: anything the field checks missed still fails here, so the
	// resolved schema artifact and this validator cannot silently diverge.
	if len(v) == 0 {
		if err := Check(obj); err != nil {
			v = append(v, err.Error())
		}
	}

	return v
}

// ValidatePlan validates a typed plan by round-tripping it through JSON.
// Validating an already-valid plan is idempotent: it reports no violations
// however many times it runs.
func ValidatePlan(p *model.QueryPlan) []string {
	obj, err := toObject(p)
	if err != nil {
		return []string{err.Error()}
	}
	return ValidateObject(obj)
}

func toObject(p *model.QueryPlan) (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func checkEnumField(obj map[string]any, field string, allowed []any) []string {
	raw, ok := obj[field]
	if !ok {
		return []string{fmt.Sprintf("(root): missing required field '%s'", field)}
	}
	s, ok := raw.(string)
	if !ok {
		return []string{fmt.Sprintf("%s: expected a string, got %s", field, jsonType(raw))}
	}
	if !inEnum(s, allowed) {
		return []string{fmt.Sprintf("%s: %q is not one of %s", field, s, enumList(allowed))}
	}
	return nil
}

func checkMetrics(obj map[string]any, isErrorPlan bool) []string {
	raw, ok := obj["metrics"]
	if !ok {
		if isErrorPlan {
			return nil
		}
		return []string{"(root): missing required field 'metrics'"}
	}
	arr, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprintf("metrics: expected an array, got %s", jsonType(raw))}
	}
	var v []string
	if len(arr) == 0 && !isErrorPlan {
		v = append(v, "metrics: must not be empty")
	}
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			v = append(v, fmt.Sprintf("metrics[%d]: expected a string, got %s", i, jsonType(item)))
			continue
		}
		if !model.ValidMetric(s) {
			v = append(v, fmt.Sprintf("metrics[%d]: %q is not one of %s", i, s, enumList(enumAny(model.Metrics))))
		}
	}
	return v
}

func checkFilters(obj map[string]any) []string {
	raw, ok := obj["filters"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprintf("filters: expected an array, got %s", jsonType(raw))}
	}
	var v []string
	for i, item := range arr {
		f, ok := item.(map[string]any)
		if !ok {
			v = append(v, fmt.Sprintf("filters[%d]: expected an object, got %s", i, jsonType(item)))
			continue
		}
		if field, ok := f["field"].(string); !ok || field == "" {
			v = append(v, fmt.Sprintf("filters[%d].field: expected a non-empty string", i))
		}
		op, ok := f["op"].(string)
		if !ok {
			v = append(v, fmt.Sprintf("filters[%d].op: expected a string", i))
		} else if !model.ValidOp(op) {
			v = append(v, fmt.Sprintf("filters[%d].op: %q is not one of %s", i, op, enumList(enumAny(model.Ops))))
		}
		if _, ok := f["value"]; !ok {
			v = append(v, fmt.Sprintf("filters[%d]: missing required field 'value'", i))
		}
	}
	return v
}

func checkGroupBy(obj map[string]any) []string {
	raw, ok := obj["group_by"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprintf("group_by: expected an array, got %s", jsonType(raw))}
	}
	var v []string
	for i, item := range arr {
		if _, ok := item.(string); !ok {
			v = append(v, fmt.Sprintf("group_by[%d]: expected a string, got %s", i, jsonType(item)))
		}
	}
	return v
}

func checkTimeRange(obj map[string]any) []string {
	raw, ok := obj["time_range"]
	if !ok || raw == nil {
		return nil
	}
	tr, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("time_range: expected an object, got %s", jsonType(raw))}
	}
	var v []string
	start, startOK := tr["start"].(string)
	if !startOK || !dateRe.MatchString(start) {
		v = append(v, "time_range.start: expected a YYYY-MM-DD date string")
	}
	end, endOK := tr["end"].(string)
	if !endOK || !dateRe.MatchString(end) {
		v = append(v, "time_range.end: expected a YYYY-MM-DD date string")
	}
	if startOK && endOK && dateRe.MatchString(start) && dateRe.MatchString(end) && start > end {
		v = append(v, fmt.Sprintf("time_range: start %q is after end %q", start, end))
	}
	return v
}

func checkPostProcessing(obj map[string]any) []string {
	raw, ok := obj["post_processing"]
	if !ok || raw == nil {
		return nil
	}
	pp, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("post_processing: expected an object, got %s", jsonType(raw))}
	}
	var v []string
	if so, ok := pp["sort_order"].(string); ok && so != "asc" && so != "desc" {
		v = append(v, fmt.Sprintf("post_processing.sort_order: %q is not one of \"asc\", \"desc\"", so))
	}
	return v
}

func checkErrorObject(obj map[string]any) []string {
	raw, hasError := obj["error"]
	intent, _ := obj["intent"].(string)

	if !hasError {
		if intent == "error" {
			return []string{"(root): intent is \"error\" but no error object is present"}
		}
		return nil
	}

	var v []string
	if intent != "error" {
		v = append(v, "error: present but intent is not \"error\"")
	}
	e, ok := raw.(map[string]any)
	if !ok {
		return append(v, fmt.Sprintf("error: expected an object, got %s", jsonType(raw)))
	}
	if t, ok := e["type"].(string); !ok {
		v = append(v, "error.type: expected a string")
	} else if t != model.ErrTypeParse && t != model.ErrTypeSchema {
		v = append(v, fmt.Sprintf("error.type: %q is not one of %q, %q", t, model.ErrTypeParse, model.ErrTypeSchema))
	}
	if _, ok := e["message"].(string); !ok {
		v = append(v, "error.message: expected a string")
	}
	if _, ok := e["repair_attempted"].(bool); !ok {
		v = append(v, "error.repair_attempted: expected a boolean")
	}
	return v
}

// checkConsistency enforces that the plan's dataset is the home dataset of
// at least one requested metric. Skipped when the fields it reads already
// failed their own checks, and for terminal-error plans.
func checkConsistency(obj map[string]any) []string {
	if _, hasError := obj["error"]; hasError {
		return nil
	}
	ds, ok := obj["dataset"].(string)
	if !ok || !model.ValidDataset(ds) {
		return nil
	}
	arr, ok := obj["metrics"].([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	for _, item := range arr {
		s, ok := item.(string)
		if !ok || !model.ValidMetric(s) {
			return nil
		}
		if model.Metric(s).HomeDataset() == model.Dataset(ds) {
			return nil
		}
	}
	return []string{fmt.Sprintf("dataset: %q is not the home dataset of any requested metric", ds)}
}

func inEnum(s string, allowed []any) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

func enumList(allowed []any) string {
	parts := make([]string, len(allowed))
	for i, a := range allowed {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return strings.Join(parts, ", ")
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
