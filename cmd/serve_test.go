package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/controller"
	"github.com/sells-group/bankquery/internal/executor"
	"github.com/sells-group/bankquery/internal/generator"
	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
	"github.com/sells-group/bankquery/internal/pipeline"
	"github.com/sells-group/bankquery/internal/store"
	"github.com/sells-group/bankquery/pkg/llm"
)

// cannedLLM always returns the same text.
type cannedLLM struct {
	text string
}

func (c *cannedLLM) Generate(context.Context, llm.GenerateRequest) (string, error) {
	return c.text, nil
}

const testPlanJSON = `{
	"domain": "Treasury",
	"intent": "monthly NSFR",
	"dataset": "liquidity",
	"metrics": ["NSFR"]
}`

func newTestEnv(t *testing.T) *queryEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	vocab, err := ontology.Load()
	require.NoError(t, err)
	data, err := executor.LoadData()
	require.NoError(t, err)

	client := &cannedLLM{text: testPlanJSON}
	p := pipeline.New(
		pipeline.Config{},
		vocab,
		generator.New(client, generator.DefaultConfig()),
		controller.New(client, controller.DefaultConfig()),
		executor.NewEngine(data),
		generator.NewExplainer(client, vocab),
		st,
	)

	return &queryEnv{Store: st, Vocab: vocab, Data: data, Pipeline: p}
}

func TestServeHealth(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeGlossary(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/glossary", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var defs []ontology.MetricDef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	assert.Len(t, defs, 5)
}

func TestServeQuery(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	body := strings.NewReader(`{"question":"Show monthly NSFR"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var answer model.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	require.NotNil(t, answer.Plan)
	assert.Equal(t, model.DomainTreasury, answer.Plan.Domain)
	assert.NotEmpty(t, answer.Result.Rows)

	// The run was persisted.
	runs, err := env.Store.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestServeQueryBadRequest(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeRuns(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/no-such-id", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
