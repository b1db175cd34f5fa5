package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/bankquery/internal/model"
)

// ParseResult is the outcome of one parse-and-validate pass over raw
// generator text.
type ParseResult struct {
	// Plan is the canonical typed plan, set only when Violations is empty.
	Plan *model.QueryPlan
	// Object is the parsed JSON object, nil when parsing failed outright.
	Object map[string]any
	// ParseErr is non-empty when the text was not valid JSON even after
	// truncation repair. Distinct from a validation failure.
	ParseErr string
	// Violations lists every schema violation, in field order.
	Violations []string
}

// Valid reports whether the raw text produced a schema-valid plan.
func (r ParseResult) Valid() bool {
	return r.Plan != nil && r.ParseErr == "" && len(r.Violations) == 0
}

// ParseAndValidate strictly parses raw generator output as JSON, applying
// the truncation-repair heuristic once on parse failure, then validates the
// object against the plan schema collecting all violations.
func ParseAndValidate(raw string) ParseResult {
	text := stripFences(raw)

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		repaired, ok := repairTruncated(text)
		if !ok {
			return ParseResult{ParseErr: fmt.Sprintf("JSON parse error: %v", err)}
		}
		parsed = repaired
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return ParseResult{Violations: []string{
			fmt.Sprintf("(root): expected a JSON object, got %s", jsonType(parsed)),
		}}
	}

	violations := ValidateObject(obj)
	if len(violations) > 0 {
		return ParseResult{Object: obj, Violations: violations}
	}

	plan, err := decodePlan(obj)
	if err != nil {
		return ParseResult{Object: obj, Violations: []string{err.Error()}}
	}
	return ParseResult{Plan: plan, Object: obj}
}

func decodePlan(obj map[string]any) (*model.QueryPlan, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var plan model.QueryPlan
	if err := json.Unmarshal(b, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// stripFences removes markdown code fences small models like to wrap JSON in.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

var (
	trailingStringRe = regexp.MustCompile(`,?\s*"[^"]*$`)
	trailingKeyRe    = regexp.MustCompile(`,?\s*"[^"]*"\s*:\s*$`)
)

// repairTruncated attempts to recover JSON that a token-capped model cut off
// mid-object: strip a trailing unterminated string literal, then a trailing
// incomplete key, then a dangling separator, then append one closer for each
// unmatched bracket and brace, and parse exactly once more.
func repairTruncated(text string) (any, bool) {
	s := strings.TrimRight(text, " \t\r\n")
	if strings.Count(s, `"`)%2 == 1 {
		s = trailingStringRe.ReplaceAllString(s, "")
	}
	s = trailingKeyRe.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")

	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	if openBrackets > 0 {
		s += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		s += strings.Repeat("}", openBraces)
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}
