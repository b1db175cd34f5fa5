// Package controller forces untrusted generator output into a
// schema-conforming QueryPlan within a bounded number of repair attempts.
// The loop is an explicit state machine with a counter, so the termination
// guarantee is visible in the control flow rather than hidden in recursion.
package controller

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/schema"
	"github.com/sells-group/bankquery/pkg/llm"
)

// State is a phase of the validate-repair loop.
type State int

const (
	StateParsing State = iota
	StateValidating
	StateRepairing
	StateValid
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateParsing:
		return "parsing"
	case StateValidating:
		return "validating"
	case StateRepairing:
		return "repairing"
	case StateValid:
		return "valid"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RepairAttempt records one pass through the loop. It exists only for the
// loop's own bookkeeping; callers see it solely through Outcome.
type RepairAttempt struct {
	Attempt    int
	RawText    string
	ParseErr   string
	Violations []string
}

// Config bounds the repair loop.
type Config struct {
	// MaxRepairs is the number of repair generations after the initial
	// text, so the loop issues at most MaxRepairs generator calls.
	MaxRepairs int
	// RepairTemperature must be at or below the initial generation
	// temperature; repairs run fully deterministic by default.
	RepairTemperature float64
	MaxTokens         int64
}

// DefaultConfig returns the production loop bounds: two repairs, repairs at
// temperature zero.
func DefaultConfig() Config {
	return Config{MaxRepairs: 2, RepairTemperature: 0, MaxTokens: 1024}
}

// Outcome is the loop's terminal result. Plan is always non-nil and always
// schema-valid: either the repaired plan or a terminal-error plan.
type Outcome struct {
	Plan        *model.QueryPlan
	State       State
	RepairCount int
	Attempts    []RepairAttempt
}

// Controller runs the validate-repair loop over a generator capability.
type Controller struct {
	llm llm.Client
	cfg Config
}

// New creates a Controller. Zero-value config fields take defaults.
func New(client llm.Client, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxRepairs <= 0 {
		cfg.MaxRepairs = def.MaxRepairs
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Controller{llm: client, cfg: cfg}
}

// Control drives raw generator text to a terminal state. The skeleton
// supplies fallback domain/dataset values for the terminal-error plan, so
// those fields are never left unset. A generator failure or cancellation
// during repair consumes the attempt like a parse failure.
func (c *Controller) Control(ctx context.Context, raw string, skeleton *model.QueryPlan) *Outcome {
	log := zap.L().Named("controller")

	// Best-known enum values for the terminal-error plan, seeded from the
	// skeleton and refreshed from any attempt that parsed.
	bestDomain := string(skeleton.Domain)
	bestDataset := string(skeleton.Dataset)

	var (
		st       = StateParsing
		current  = raw
		repairs  = 0
		attempts []RepairAttempt
		res      schema.ParseResult
	)

	for {
		switch st {
		case StateParsing:
			res = schema.ParseAndValidate(current)
			attempts = append(attempts, RepairAttempt{
				Attempt:    repairs,
				RawText:    current,
				ParseErr:   res.ParseErr,
				Violations: res.Violations,
			})
			if res.Object != nil {
				if d, ok := res.Object["domain"].(string); ok && model.ValidDomain(d) {
					bestDomain = d
				}
				if d, ok := res.Object["dataset"].(string); ok && model.ValidDataset(d) {
					bestDataset = d
				}
			}
			if res.ParseErr != "" {
				log.Debug("parse failed", zap.Int("attempt", repairs), zap.String("error", res.ParseErr))
				st = StateRepairing
			} else {
				st = StateValidating
			}

		case StateValidating:
			if res.Valid() {
				st = StateValid
			} else {
				log.Debug("validation failed",
					zap.Int("attempt", repairs),
					zap.Strings("violations", res.Violations),
				)
				st = StateRepairing
			}

		case StateRepairing:
			if repairs >= c.cfg.MaxRepairs {
				st = StateExhausted
				continue
			}
			repairs++
			repaired, err := c.llm.Generate(ctx, llm.GenerateRequest{
				System:      repairSystemPrompt(),
				User:        repairUserPrompt(current, res),
				Temperature: c.cfg.RepairTemperature,
				MaxTokens:   c.cfg.MaxTokens,
			})
			if err != nil {
				// Unavailable generator is indistinguishable from
				// unparseable output for budget purposes.
				log.Warn("repair generation failed", zap.Int("attempt", repairs), zap.Error(err))
				repaired = ""
			}
			current = repaired
			st = StateParsing

		case StateValid:
			log.Info("plan valid", zap.Int("repairs", repairs))
			return &Outcome{
				Plan:        res.Plan,
				State:       StateValid,
				RepairCount: repairs,
				Attempts:    attempts,
			}

		case StateExhausted:
			errType, msg := terminalError(res)
			log.Warn("repair budget exhausted",
				zap.Int("repairs", repairs),
				zap.String("error_type", errType),
			)
			plan := schema.BuildErrorPlan(bestDomain, bestDataset, errType, msg)
			return &Outcome{
				Plan:        plan,
				State:       StateExhausted,
				RepairCount: repairs,
				Attempts:    attempts,
			}
		}
	}
}

func terminalError(res schema.ParseResult) (errType, msg string) {
	if res.ParseErr != "" {
		return model.ErrTypeParse, res.ParseErr
	}
	return model.ErrTypeSchema, strings.Join(res.Violations, "; ")
}

func repairSystemPrompt() string {
	return "You are a JSON repair assistant. The JSON you receive was supposed to conform " +
		"to the QueryPlan schema below but has errors. Fix it so it conforms. " +
		"Output ONLY the corrected JSON object, nothing else.\n\nSchema:\n" + schema.JSON()
}

func repairUserPrompt(raw string, res schema.ParseResult) string {
	var b strings.Builder
	b.WriteString("Original JSON (invalid):\n")
	b.WriteString(raw)
	b.WriteString("\n\nProblems:\n")
	if res.ParseErr != "" {
		b.WriteString(res.ParseErr)
		b.WriteString("\n")
	}
	for _, v := range res.Violations {
		b.WriteString(v)
		b.WriteString("\n")
	}
	b.WriteString("\nFix the JSON. Output ONLY the corrected JSON object.")
	return b.String()
}
