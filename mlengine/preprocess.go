package mlengine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Preprocessor is the pre-fitted scale/encode transform exported by the
// training stack. Its internals are opaque to the pipeline: the contract is
// Transform plus OutputFeatureNames, nothing else. Standardization
// parameters and one-hot categories were fitted on the training set and are
// never re-fitted here.
type Preprocessor struct {
	Numeric []struct {
		Column string  `json:"column"`
		Mean   float64 `json:"mean"`
		Scale  float64 `json:"scale"`
	} `json:"numeric"`
	Categorical []struct {
		Column     string   `json:"column"`
		Categories []string `json:"categories"`
	} `json:"categorical"`

	outputNames []string
}

// LoadPreprocessor reads a fitted transform artifact.
func LoadPreprocessor(path string) (*Preprocessor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preprocessor
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse preprocessor %s: %w", path, err)
	}
	for _, spec := range p.Numeric {
		p.outputNames = append(p.outputNames, spec.Column)
	}
	for _, spec := range p.Categorical {
		for _, cat := range spec.Categories {
			p.outputNames = append(p.outputNames, spec.Column+"_"+cat)
		}
	}
	return &p, nil
}

// OutputFeatureNames returns the transform's output columns, in order.
func (p *Preprocessor) OutputFeatureNames() []string {
	return p.outputNames
}

// Transform scales the numeric columns and one-hot encodes the categorical
// ones, producing a row labeled with the fitted output feature names.
// Columns the transform was fitted on must exist in the row's schema; a
// missing categorical column is a schema mismatch and fails. Missing numeric
// values stay missing. Unknown categories encode as all zeros.
func (p *Preprocessor) Transform(row FeatureRow) (FeatureRow, error) {
	out := FeatureRow{
		Columns: p.outputNames,
		Values:  make(map[string]float64, len(p.outputNames)),
	}
	for _, spec := range p.Numeric {
		v, ok := row.Values[spec.Column]
		if !ok {
			continue
		}
		scale := spec.Scale
		if scale == 0 {
			scale = 1
		}
		scaled := (v - spec.Mean) / scale
		if !math.IsNaN(scaled) && !math.IsInf(scaled, 0) {
			out.Values[spec.Column] = scaled
		}
	}
	for _, spec := range p.Categorical {
		label, ok := row.Labels[spec.Column]
		if !ok {
			return FeatureRow{}, fmt.Errorf("transform: categorical column %q missing from input", spec.Column)
		}
		for _, cat := range spec.Categories {
			name := spec.Column + "_" + cat
			if cat == label {
				out.Values[name] = 1
			} else {
				out.Values[name] = 0
			}
		}
	}
	return out, nil
}
