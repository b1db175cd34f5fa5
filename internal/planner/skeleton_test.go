package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
)

func resolution(domain model.Domain, dataset model.Dataset, metrics ...model.Metric) ontology.Resolution {
	return ontology.Resolution{Domain: domain, Dataset: dataset, Metrics: metrics}
}

func refDate() Config {
	return Config{ReferenceDate: time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC)}
}

func TestBuildSkeletonQuarter(t *testing.T) {
	plan := BuildSkeleton(
		"What was our net interest income by product for Q1 2025 in the UK?",
		resolution(model.DomainFinance, model.DatasetInterest, model.MetricNII),
		refDate(),
	)

	assert.Equal(t, model.DomainFinance, plan.Domain)
	assert.Equal(t, model.DatasetInterest, plan.Dataset)

	require.NotNil(t, plan.TimeRange)
	assert.Equal(t, "2025-01-01", plan.TimeRange.Start)
	assert.Equal(t, "2025-03-31", plan.TimeRange.End)

	require.Len(t, plan.Filters, 1)
	assert.Equal(t, model.Filter{Field: "region", Op: model.OpEq, Value: "UK"}, plan.Filters[0])

	assert.Equal(t, []string{"product"}, plan.GroupBy)
}

func TestBuildSkeletonQuarterBoundaries(t *testing.T) {
	tests := []struct {
		prompt string
		start  string
		end    string
	}{
		{"show NII for Q2 2024", "2024-04-01", "2024-06-30"},
		{"show NII for Q3 2024", "2024-07-01", "2024-09-30"},
		{"show NII for Q4 2024", "2024-10-01", "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			plan := BuildSkeleton(tt.prompt,
				resolution(model.DomainFinance, model.DatasetInterest, model.MetricNII), refDate())
			require.NotNil(t, plan.TimeRange)
			assert.Equal(t, tt.start, plan.TimeRange.Start)
			assert.Equal(t, tt.end, plan.TimeRange.End)
		})
	}
}

func TestBuildSkeletonLastDays(t *testing.T) {
	plan := BuildSkeleton(
		"any structuring in the last 30 days?",
		resolution(model.DomainAML, model.DatasetTransactions, model.MetricStructuring),
		refDate(),
	)

	require.NotNil(t, plan.TimeRange)
	assert.Equal(t, "2024-12-29", plan.TimeRange.Start)
	assert.Equal(t, "2025-01-28", plan.TimeRange.End)
}

func TestBuildSkeletonMonth(t *testing.T) {
	plan := BuildSkeleton(
		"NSFR for December 2024",
		resolution(model.DomainTreasury, model.DatasetLiquidity, model.MetricNSFR),
		refDate(),
	)

	require.NotNil(t, plan.TimeRange)
	assert.Equal(t, "2024-12-01", plan.TimeRange.Start)
	assert.Equal(t, "2024-12-31", plan.TimeRange.End)
}

func TestBuildSkeletonNoTimePhrase(t *testing.T) {
	plan := BuildSkeleton(
		"overall net interest margin",
		resolution(model.DomainFinance, model.DatasetInterest, model.MetricNIM),
		refDate(),
	)
	assert.Nil(t, plan.TimeRange)
}

func TestBuildSkeletonRegions(t *testing.T) {
	tests := []struct {
		prompt string
		region string
	}{
		{"NII in the United Kingdom", "UK"},
		{"NII in the US", "US"},
		{"NII across Europe", "EU"},
	}
	for _, tt := range tests {
		plan := BuildSkeleton(tt.prompt,
			resolution(model.DomainFinance, model.DatasetInterest, model.MetricNII), refDate())
		require.NotEmpty(t, plan.Filters, tt.prompt)
		assert.Equal(t, tt.region, plan.Filters[0].Value, tt.prompt)
	}
}

func TestBuildSkeletonCustomerIsNotUS(t *testing.T) {
	plan := BuildSkeleton(
		"flag structuring by customer",
		resolution(model.DomainAML, model.DatasetTransactions, model.MetricStructuring),
		refDate(),
	)
	for _, f := range plan.Filters {
		assert.NotEqual(t, "region", f.Field)
	}
}

func TestBuildSkeletonStructuringDefaults(t *testing.T) {
	plan := BuildSkeleton(
		"accounts structuring deposits below the reporting threshold",
		resolution(model.DomainAML, model.DatasetTransactions, model.MetricStructuring),
		refDate(),
	)

	require.Len(t, plan.Filters, 1)
	assert.Equal(t, model.Filter{Field: "cash", Op: model.OpEq, Value: true}, plan.Filters[0])

	require.NotNil(t, plan.PostProcessing)
	assert.Equal(t, 7, plan.PostProcessing.WindowDays)
	assert.Equal(t, 2, plan.PostProcessing.MinCount)
}

func TestBuildSkeletonNSFRDefaults(t *testing.T) {
	plan := BuildSkeleton(
		"monthly NSFR trend",
		resolution(model.DomainTreasury, model.DatasetLiquidity, model.MetricNSFR),
		refDate(),
	)

	require.NotNil(t, plan.PostProcessing)
	require.NotNil(t, plan.PostProcessing.FlagThreshold)
	assert.Equal(t, 100.0, *plan.PostProcessing.FlagThreshold)
	assert.Equal(t, "month", plan.PostProcessing.SortBy)
	assert.Equal(t, "asc", plan.PostProcessing.SortOrder)

	assert.Equal(t, []string{"month"}, plan.GroupBy)
}

func TestBuildSkeletonStageMigration(t *testing.T) {
	plan := BuildSkeleton(
		"ECL for loans that moved from stage 1 to stage 2",
		resolution(model.DomainRisk, model.DatasetLoans, model.MetricECL),
		refDate(),
	)

	require.Len(t, plan.Filters, 2)
	assert.Equal(t, model.Filter{Field: "stage_ifrs9", Op: model.OpEq, Value: 2}, plan.Filters[0])
	assert.Equal(t, model.Filter{Field: "previous_stage", Op: model.OpEq, Value: 1}, plan.Filters[1])
}

func TestBuildSkeletonGroupByRespectsDataset(t *testing.T) {
	// "by product" is not a liquidity dimension, so it must not appear.
	plan := BuildSkeleton(
		"NSFR by product",
		resolution(model.DomainTreasury, model.DatasetLiquidity, model.MetricNSFR),
		refDate(),
	)
	assert.Empty(t, plan.GroupBy)
}

func TestBuildSkeletonTruncatesIntent(t *testing.T) {
	long := ""
	for len(long) < 300 {
		long += "net interest income "
	}
	plan := BuildSkeleton(long,
		resolution(model.DomainFinance, model.DatasetInterest, model.MetricNII), refDate())
	assert.Len(t, plan.Intent, 200)
}

func TestBuildSkeletonProducts(t *testing.T) {
	plan := BuildSkeleton(
		"NII on SME loan books",
		resolution(model.DomainFinance, model.DatasetInterest, model.MetricNII),
		refDate(),
	)
	require.Len(t, plan.Filters, 1)
	assert.Equal(t, "SME Loan", plan.Filters[0].Value)
}
