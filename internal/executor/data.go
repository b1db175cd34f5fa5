// Package executor turns a validated QueryPlan into numeric results by pure
// computation over fixed in-memory datasets. It never calls the generator
// capability and never mutates the data it reads.
package executor

import (
	"embed"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankquery/internal/model"
)

//go:embed data/*.json
var dataFS embed.FS

// Threshold is a jurisdiction's cash reporting threshold.
type Threshold struct {
	Jurisdiction           string  `json:"jurisdiction"`
	Currency               string  `json:"currency"`
	CashReportingThreshold float64 `json:"cash_reporting_threshold"`
}

// defaultThreshold applies when a transaction's jurisdiction has no entry.
const defaultThreshold = 10000

// Data holds the four dataset collections and the thresholds table. Loaded
// once at startup and read-only afterwards, so unlimited concurrent readers
// are safe.
type Data struct {
	sets       map[model.Dataset][]model.Row
	thresholds []Threshold
}

// LoadData parses the embedded dataset files.
func LoadData() (*Data, error) {
	d := &Data{sets: make(map[model.Dataset][]model.Row, len(model.Datasets))}

	for _, ds := range model.Datasets {
		rows, err := readRows(string(ds))
		if err != nil {
			return nil, err
		}
		d.sets[ds] = rows
	}

	raw, err := dataFS.ReadFile("data/thresholds.json")
	if err != nil {
		return nil, eris.Wrap(err, "executor: read thresholds")
	}
	if err := json.Unmarshal(raw, &d.thresholds); err != nil {
		return nil, eris.Wrap(err, "executor: parse thresholds")
	}

	return d, nil
}

func readRows(name string) ([]model.Row, error) {
	raw, err := dataFS.ReadFile("data/" + name + ".json")
	if err != nil {
		return nil, eris.Wrapf(err, "executor: read dataset %s", name)
	}
	var rows []model.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, eris.Wrapf(err, "executor: parse dataset %s", name)
	}
	return rows, nil
}

// Rows returns the records of one dataset. Callers must not mutate them.
func (d *Data) Rows(ds model.Dataset) []model.Row {
	return d.sets[ds]
}

// ThresholdFor resolves the cash reporting threshold for a jurisdiction and
// currency pair.
func (d *Data) ThresholdFor(jurisdiction, currency string) float64 {
	for _, t := range d.thresholds {
		if t.Jurisdiction == jurisdiction && t.Currency == currency {
			return t.CashReportingThreshold
		}
	}
	return defaultThreshold
}
