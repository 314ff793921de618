package mlengine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// treeNode is one node of a binary decision tree. Feature < 0 marks a leaf.
// Missing feature values (NaN) follow the default-left convention used by
// the gradient-boosting exporters.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t tree) score(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		v := math.NaN()
		if n.Feature < len(x) {
			v = x[n.Feature]
		}
		if math.IsNaN(v) || v < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeEnsemble is the portable artifact format the training stack exports
// for all four regressors: an additive (boosted) or averaged (forest) set of
// trees over a fixed feature ordering.
type treeEnsemble struct {
	Name      string  `json:"name"`
	BaseScore float64 `json:"base_score"`
	// Average switches leaf aggregation from additive (boosting) to mean
	// (bagging/forest).
	Average bool `json:"average"`
	// Features is the ordered input column list the trees index into.
	// Empty means unconstrained: the caller's column order is used as-is.
	Features []string `json:"features"`
	// UnderscoreColumns requests rewriting spaces to underscores in
	// province-encoded column names before alignment.
	UnderscoreColumns bool   `json:"underscore_columns"`
	Trees             []tree `json:"trees"`
}

func (m *treeEnsemble) predict(x []float64) float64 {
	sum := m.BaseScore
	for _, t := range m.Trees {
		sum += t.score(x)
	}
	if m.Average && len(m.Trees) > 0 {
		return m.BaseScore + (sum-m.BaseScore)/float64(len(m.Trees))
	}
	return sum
}

// ModelEntry is the uniform per-model descriptor resolved once at load time,
// so scoring is a single code path with no per-type probing.
type ModelEntry struct {
	Name string
	// Columns is the model's expected input column list, in order.
	// Empty means the model accepts whatever columns the row carries.
	Columns []string
	// RenameUnderscore rewrites spaces to underscores in province-encoded
	// column names before alignment (lgb training-data naming quirk).
	RenameUnderscore bool

	model *treeEnsemble
}

// ModelBank holds the loaded regressors, keyed by the fixed model names.
type ModelBank struct {
	entries []ModelEntry
	logger  *zap.Logger
}

// modelPatterns lists candidate artifact globs per model name; when several
// snapshot files match, the most recently modified one wins.
var modelPatterns = map[string][]string{
	"xgb": {"xgb_yield_model*.json"},
	"lgb": {"lgb_yield_model*.json"},
	"cat": {"cat_yield_model*.json"},
	"rf":  {"rf_yield_model*.json", "random_forest*.json"},
}

// modelOrder fixes iteration order over the bank.
var modelOrder = []string{"xgb", "lgb", "cat", "rf"}

// LoadModels loads whichever of the four model artifacts exist in dir. Any
// subset may be missing or unreadable; each failure is logged and that model
// is excluded, never fatal to the bank.
func LoadModels(dir string, logger *zap.Logger) *ModelBank {
	bank := &ModelBank{logger: logger}
	for _, name := range modelOrder {
		path := latestArtifact(dir, modelPatterns[name])
		if path == "" {
			logger.Warn("model artifact not found", zap.String("model", name), zap.String("dir", dir))
			continue
		}
		m, err := loadTreeEnsemble(path)
		if err != nil {
			logger.Warn("model load failed", zap.String("model", name), zap.Error(err))
			continue
		}
		bank.entries = append(bank.entries, ModelEntry{
			Name:             name,
			Columns:          m.Features,
			RenameUnderscore: m.UnderscoreColumns,
			model:            m,
		})
		logger.Info("loaded model", zap.String("model", name), zap.String("file", filepath.Base(path)))
	}
	return bank
}

// latestArtifact resolves the candidate globs and returns the most recently
// modified match, or "" when nothing matches.
func latestArtifact(dir string, patterns []string) string {
	var best string
	var bestMod int64
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
				best, bestMod = path, mod
			}
		}
	}
	return best
}

func loadTreeEnsemble(path string) (*treeEnsemble, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m treeEnsemble
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("model %s has no trees", path)
	}
	return &m, nil
}

// Names returns the loaded model names in bank order.
func (b *ModelBank) Names() []string {
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.Name
	}
	return names
}

// Len reports how many models loaded.
func (b *ModelBank) Len() int { return len(b.entries) }

// Score runs every loaded model against the scaled feature row. A model
// whose columns cannot be aligned fails alone: the failure is logged and its
// prediction dropped, the rest of the bank still scores.
func (b *ModelBank) Score(row FeatureRow) map[string]float64 {
	preds := make(map[string]float64, len(b.entries))
	for _, entry := range b.entries {
		pred, err := entry.score(row)
		if err != nil {
			b.logger.Warn("model scoring failed", zap.String("model", entry.Name), zap.Error(err))
			continue
		}
		preds[entry.Name] = pred
	}
	return preds
}

func (e ModelEntry) score(row FeatureRow) (float64, error) {
	values := row.Values
	columns := row.Columns
	if e.RenameUnderscore {
		values = make(map[string]float64, len(row.Values))
		columns = make([]string, len(row.Columns))
		for i, col := range row.Columns {
			renamed := col
			if strings.HasPrefix(col, colProvince+"_") {
				renamed = strings.ReplaceAll(col, " ", "_")
			}
			columns[i] = renamed
			if v, ok := row.Values[col]; ok {
				values[renamed] = v
			}
		}
	}

	want := e.Columns
	if len(want) == 0 {
		want = columns
	}
	x := make([]float64, len(want))
	missing := 0
	for i, col := range want {
		if v, ok := values[col]; ok {
			x[i] = v
		} else if contains(columns, col) {
			x[i] = math.NaN() // present in schema, value missing
		} else {
			x[i] = math.NaN()
			missing++
		}
	}
	if len(e.Columns) > 0 && missing == len(want) {
		return 0, fmt.Errorf("none of the %d expected columns are present", len(want))
	}
	return e.model.predict(x), nil
}

func contains(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}
