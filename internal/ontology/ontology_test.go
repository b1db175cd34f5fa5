package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/model"
)

func TestLoadVocabulary(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	assert.Len(t, v.Metrics, 5)
	assert.Len(t, v.Domains, 4)

	for _, m := range v.Metrics {
		assert.NotEmpty(t, m.Label, "metric %s", m.ID)
		assert.NotEmpty(t, m.Formula, "metric %s", m.ID)
		assert.NotEmpty(t, m.Keywords, "metric %s", m.ID)
		assert.NotEmpty(t, m.Dataset, "metric %s", m.ID)
	}
}

func TestResolve(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		prompt  string
		domain  model.Domain
		metrics []model.Metric
		dataset model.Dataset
	}{
		{
			name:    "net interest income",
			prompt:  "What was our net interest income for Q1 2025?",
			domain:  model.DomainFinance,
			metrics: []model.Metric{model.MetricNII},
			dataset: model.DatasetInterest,
		},
		{
			name:    "nsfr breaches",
			prompt:  "Show NSFR breaches by month",
			domain:  model.DomainTreasury,
			metrics: []model.Metric{model.MetricNSFR},
			dataset: model.DatasetLiquidity,
		},
		{
			name:    "credit loss",
			prompt:  "Expected credit loss on stage 2 loans",
			domain:  model.DomainRisk,
			metrics: []model.Metric{model.MetricECL},
			dataset: model.DatasetLoans,
		},
		{
			name:    "structuring",
			prompt:  "Flag accounts structuring cash deposits below the reporting threshold",
			domain:  model.DomainAML,
			metrics: []model.Metric{model.MetricStructuring},
			dataset: model.DatasetTransactions,
		},
		{
			name:    "multiple metrics keep vocabulary order",
			prompt:  "Compare net interest income and net interest margin by product",
			domain:  model.DomainFinance,
			metrics: []model.Metric{model.MetricNII, model.MetricNIM},
			dataset: model.DatasetInterest,
		},
		{
			name:    "unmatched prompt falls back",
			prompt:  "tell me something interesting about penguins",
			domain:  model.DomainFinance,
			metrics: []model.Metric{model.MetricNII, model.MetricNIM},
			dataset: model.DatasetInterest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Resolve(tt.prompt)
			assert.Equal(t, tt.domain, res.Domain)
			assert.Equal(t, tt.metrics, res.Metrics)
			assert.Equal(t, tt.dataset, res.Dataset)
		})
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	lower := v.Resolve("show nsfr by month")
	upper := v.Resolve("SHOW NSFR BY MONTH")
	assert.Equal(t, lower, upper)
}

func TestMetricLookup(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	def, ok := v.Metric(model.MetricECL)
	require.True(t, ok)
	assert.Equal(t, "Expected Credit Loss", def.Label)
	assert.Equal(t, model.DatasetLoans, def.Dataset)

	_, ok = v.Metric(model.Metric("BOGUS"))
	assert.False(t, ok)
}

func TestGlossaryCoversAllMetrics(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	defs := v.Glossary()
	require.Len(t, defs, 5)
	assert.Equal(t, model.MetricNII, defs[0].ID)
}
