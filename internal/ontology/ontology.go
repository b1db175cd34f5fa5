// Package ontology maps free-text banking vocabulary to canonical metric
// identifiers, a domain classification, and the dataset those metrics read.
// It is a pure keyword lookup: deterministic, no retries, no external calls.
package ontology

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bankquery/internal/model"
)

//go:embed vocab.yaml
var vocabYAML []byte

// MetricDef describes one canonical metric.
type MetricDef struct {
	ID       model.Metric  `yaml:"id" json:"id"`
	Label    string        `yaml:"label" json:"label"`
	Formula  string        `yaml:"formula" json:"formula"`
	Dataset  model.Dataset `yaml:"dataset" json:"dataset"`
	Keywords []string      `yaml:"keywords" json:"-"`
}

// DomainDef holds the classification keywords for one domain.
type DomainDef struct {
	ID       model.Domain `yaml:"id"`
	Keywords []string     `yaml:"keywords"`
}

// Vocabulary is the immutable ontology table. Load it once at startup and
// pass it by reference; it is safe for unlimited concurrent readers.
type Vocabulary struct {
	Metrics []MetricDef `yaml:"metrics"`
	Domains []DomainDef `yaml:"domains"`

	byID map[model.Metric]MetricDef
}

// Load parses the embedded vocabulary table.
func Load() (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(vocabYAML, &v); err != nil {
		return nil, eris.Wrap(err, "ontology: parse vocabulary")
	}
	v.byID = make(map[model.Metric]MetricDef, len(v.Metrics))
	for _, m := range v.Metrics {
		v.byID[m.ID] = m
	}
	return &v, nil
}

// Resolution is the resolver's best-effort mapping for one prompt.
type Resolution struct {
	Domain  model.Domain
	Metrics []model.Metric
	Dataset model.Dataset
}

// Resolve maps prompt text to a domain/metrics/dataset triple. There is no
// failure mode: unmatched prompts fall back to Finance with NII and NIM.
func (v *Vocabulary) Resolve(prompt string) Resolution {
	lower := strings.ToLower(prompt)

	domain := v.classifyDomain(lower)
	metrics := v.identifyMetrics(lower)
	if len(metrics) == 0 {
		metrics = []model.Metric{model.MetricNII, model.MetricNIM}
	}

	dataset := metrics[0].HomeDataset()
	if dataset == "" {
		dataset = model.DatasetInterest
	}

	return Resolution{Domain: domain, Metrics: metrics, Dataset: dataset}
}

// classifyDomain scores each domain by keyword hits. Ties keep the earlier
// domain in vocabulary order; zero hits default to Finance.
func (v *Vocabulary) classifyDomain(lower string) model.Domain {
	best := model.DomainFinance
	bestScore := 0
	for _, d := range v.Domains {
		score := 0
		for _, kw := range d.Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = d.ID
			bestScore = score
		}
	}
	return best
}

func (v *Vocabulary) identifyMetrics(lower string) []model.Metric {
	var found []model.Metric
	for _, m := range v.Metrics {
		for _, kw := range m.Keywords {
			if strings.Contains(lower, kw) {
				found = append(found, m.ID)
				break
			}
		}
	}
	return found
}

// Metric looks up a metric definition by canonical ID.
func (v *Vocabulary) Metric(id model.Metric) (MetricDef, bool) {
	m, ok := v.byID[id]
	return m, ok
}

// Glossary returns the metric definitions for presentation surfaces.
func (v *Vocabulary) Glossary() []MetricDef {
	return v.Metrics
}
