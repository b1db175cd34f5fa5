package schema

import "github.com/sells-group/bankquery/internal/model"

// BuildErrorPlan synthesizes a terminal-error QueryPlan. Domain and dataset
// are sanitized against the vocabularies so the result is schema-valid by
// construction regardless of what the failed generation contained.
func BuildErrorPlan(domain, dataset, errType, message string) *model.QueryPlan {
	if !model.ValidDomain(domain) {
		domain = string(model.DomainFinance)
	}
	if !model.ValidDataset(dataset) {
		dataset = string(model.DatasetInterest)
	}
	if errType != model.ErrTypeParse && errType != model.ErrTypeSchema {
		errType = model.ErrTypeSchema
	}
	if message == "" {
		message = "unable to produce a valid query plan"
	}
	return &model.QueryPlan{
		Domain:  model.Domain(domain),
		Intent:  "error",
		Dataset: model.Dataset(dataset),
		Error: &model.PlanError{
			Type:            errType,
			Message:         message,
			RepairAttempted: true,
		},
	}
}
