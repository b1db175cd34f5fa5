// Package pipeline orchestrates the stages that turn a natural-language
// banking question into a computed, explained answer: vocabulary resolution,
// skeleton planning, plan generation, the validate-repair loop, deterministic
// execution, and explanation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bankquery/internal/controller"
	"github.com/sells-group/bankquery/internal/executor"
	"github.com/sells-group/bankquery/internal/generator"
	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
	"github.com/sells-group/bankquery/internal/planner"
	"github.com/sells-group/bankquery/internal/store"
)

// Config carries the settings the pipeline needs beyond its components.
type Config struct {
	// ReferenceDate anchors relative time expressions like "last 30 days".
	// Zero means the current day.
	ReferenceDate time.Time
}

// Pipeline wires the stages together. Construct once and reuse; all stages
// are safe for concurrent runs.
type Pipeline struct {
	cfg       Config
	vocab     *ontology.Vocabulary
	generator *generator.Generator
	ctrl      *controller.Controller
	engine    *executor.Engine
	explainer *generator.Explainer
	store     store.Store
}

// New creates a Pipeline. The store may be nil, in which case runs are not
// persisted.
func New(
	cfg Config,
	vocab *ontology.Vocabulary,
	gen *generator.Generator,
	ctrl *controller.Controller,
	engine *executor.Engine,
	explainer *generator.Explainer,
	st store.Store,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		vocab:     vocab,
		generator: gen,
		ctrl:      ctrl,
		engine:    engine,
		explainer: explainer,
		store:     st,
	}
}

// Run answers one prompt. It always produces an Answer when the context is
// live: generator failures surface as terminal-error plans inside the
// Answer, not as returned errors. The returned error covers only context
// cancellation and run-record persistence.
func (p *Pipeline) Run(ctx context.Context, prompt string) (*model.Answer, error) {
	log := zap.L().Named("pipeline").With(zap.String("prompt", truncate(prompt, 80)))
	start := time.Now()
	log.Info("run starting")

	var run *model.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(ctx, prompt)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
	}

	answer := &model.Answer{Prompt: prompt}
	trace := func(format string, args ...any) {
		answer.Trace = append(answer.Trace, fmt.Sprintf(format, args...))
	}

	// Stage 1: vocabulary resolution. Pure keyword lookup, cannot fail.
	res := p.vocab.Resolve(prompt)
	trace("ontology: domain=%s dataset=%s metrics=%v", res.Domain, res.Dataset, res.Metrics)

	// Stage 2: skeleton. Deterministic structure the generator fills in.
	skeleton := planner.BuildSkeleton(prompt, res, planner.Config{ReferenceDate: p.cfg.ReferenceDate})
	trace("planner: skeleton filters=%d group_by=%v", len(skeleton.Filters), skeleton.GroupBy)

	// Stage 3: plan generation. A failure here is not fatal; the controller
	// treats empty text as a parse failure and drives to a terminal plan.
	raw, err := p.generator.GeneratePlan(ctx, prompt, skeleton)
	if err != nil {
		if ctx.Err() != nil {
			p.failRun(ctx, run, log)
			return nil, eris.Wrap(err, "pipeline: generate plan")
		}
		log.Warn("generator unavailable", zap.Error(err))
		trace("generator: unavailable (%v)", err)
		raw = ""
	} else {
		trace("generator: received %d bytes", len(raw))
	}

	// Stage 4: validate-repair loop. Always yields a schema-valid plan.
	outcome := p.ctrl.Control(ctx, raw, skeleton)
	answer.Plan = outcome.Plan
	answer.RepairCount = outcome.RepairCount
	trace("controller: state=%s repairs=%d", outcome.State, outcome.RepairCount)

	// Stage 5: execution. Pure computation over fixed data.
	answer.Result = p.engine.Execute(outcome.Plan)
	trace("executor: rows=%d metric_errors=%d", len(answer.Result.Rows), len(answer.Result.Errors))

	// Stage 6: explanation. Cosmetic; never fails.
	answer.Explanation = p.explainer.Explain(ctx, outcome.Plan, answer.Result)
	trace("explainer: %d bytes", len(answer.Explanation))

	if run != nil {
		if err := p.store.CompleteRun(ctx, run.ID, answer); err != nil {
			log.Warn("failed to persist run", zap.Error(err))
		}
	}

	log.Info("run complete",
		zap.String("state", outcome.State.String()),
		zap.Int("repairs", outcome.RepairCount),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return answer, nil
}

func (p *Pipeline) failRun(ctx context.Context, run *model.Run, log *zap.Logger) {
	if run == nil {
		return
	}
	// The parent context may already be cancelled.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.store.FailRun(dctx, run.ID); err != nil {
		log.Warn("failed to mark run failed", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
