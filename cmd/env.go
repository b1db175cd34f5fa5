package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bankquery/internal/controller"
	"github.com/sells-group/bankquery/internal/executor"
	"github.com/sells-group/bankquery/internal/generator"
	"github.com/sells-group/bankquery/internal/ontology"
	"github.com/sells-group/bankquery/internal/pipeline"
	"github.com/sells-group/bankquery/internal/store"
	"github.com/sells-group/bankquery/pkg/llm"
)

// queryEnv holds the initialized store, datasets, and pipeline needed by
// the ask and serve commands.
type queryEnv struct {
	Store    store.Store
	Vocab    *ontology.Vocabulary
	Data     *executor.Data
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (qe *queryEnv) Close() {
	if qe.Store != nil {
		_ = qe.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, opens the store, loads the
// vocabulary and datasets, and builds the pipeline. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*queryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	vocab, err := ontology.Load()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	data, err := executor.LoadData()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	retryCfg := llm.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.LLM.MaxRetries
	}
	client := llm.WithRetry(llm.NewClient(llm.Config{
		APIKey:            cfg.LLM.Key,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}), retryCfg)

	var refDate time.Time
	if cfg.Pipeline.ReferenceDate != "" {
		refDate, err = time.Parse("2006-01-02", cfg.Pipeline.ReferenceDate)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "parse reference_date")
		}
	}

	genCfg := generator.DefaultConfig()
	if cfg.Pipeline.PlanTemp > 0 {
		genCfg.PlanTemperature = cfg.Pipeline.PlanTemp
	}

	p := pipeline.New(
		pipeline.Config{ReferenceDate: refDate},
		vocab,
		generator.New(client, genCfg),
		controller.New(client, controller.Config{MaxRepairs: cfg.Pipeline.MaxRepairs}),
		executor.NewEngine(data),
		generator.NewExplainer(client, vocab),
		st,
	)

	zap.L().Info("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("model", cfg.LLM.Model),
		zap.Int("max_repairs", cfg.Pipeline.MaxRepairs))

	return &queryEnv{Store: st, Vocab: vocab, Data: data, Pipeline: p}, nil
}
