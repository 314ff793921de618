package mlengine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Weights maps a model name to its ensemble weight.
type Weights map[string]float64

// DefaultWeights mirrors the validation results of the trained ensemble:
// only lgb and rf carry weight by default. Kept as data so the table can be
// corrected without a rebuild (see weights.yaml override).
func DefaultWeights() Weights {
	return Weights{
		"xgb": 0.0000,
		"lgb": 0.5076,
		"cat": 0.0000,
		"rf":  0.4924,
	}
}

// temporalWindows are the lookback window sizes for lag/mean/delta features.
var temporalWindows = []int{1, 2, 3, 4, 5, 6, 7}

// Config locates the artifacts the Predictor loads once at startup.
type Config struct {
	// DataFile is the historical dataset CSV.
	DataFile string
	// ModelsDir holds the fitted model and preprocessor artifacts.
	ModelsDir string
	// PreprocessorFile is the fitted scale/encode transform artifact.
	PreprocessorFile string
	// WeightsFile optionally overrides the default ensemble weights.
	WeightsFile string
	// Weights is the ensemble weight table.
	Weights Weights
}

// DefaultConfig lays artifacts out the way the training stack exports them:
// data/ and models/ under a base directory.
func DefaultConfig(baseDir string) Config {
	return Config{
		DataFile:         filepath.Join(baseDir, "data", "history.csv"),
		ModelsDir:        filepath.Join(baseDir, "models"),
		PreprocessorFile: filepath.Join(baseDir, "models", "preprocessor.json"),
		WeightsFile:      filepath.Join(baseDir, "models", "weights.yaml"),
		Weights:          DefaultWeights(),
	}
}

// loadWeights reads a {model: weight} YAML table.
func loadWeights(path string) (Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w Weights
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse weights %s: %w", path, err)
	}
	for name, v := range w {
		if v < 0 {
			return nil, fmt.Errorf("weight for %q is negative", name)
		}
	}
	return w, nil
}
