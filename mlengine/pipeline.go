package mlengine

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

var (
	// ErrNotLoaded is returned when Predict runs before Load.
	ErrNotLoaded = errors.New("predictor resources not loaded")
	// ErrNoHistory is returned when the historical dataset is absent;
	// temporal features cannot be derived without it.
	ErrNoHistory = errors.New("historical data not loaded")
	// ErrNoPrediction is returned when no model produced a prediction, so
	// callers can tell "unavailable" apart from a legitimate zero.
	ErrNoPrediction = errors.New("no model produced a prediction")
)

// Input is one observation to predict, carrying the recognized raw fields.
type Input struct {
	ProvinceName string `json:"province_name"`
	Year         int    `json:"year"`
	Commodity    string `json:"commodity"`
	Season       string `json:"season"`

	AvgTemperature     float64 `json:"avg_temperature"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`
	SurfaceTemperature float64 `json:"surface_temperature"`
	WetBulbTemperature float64 `json:"wet_bulb_temperature"`
	Precipitation      float64 `json:"precipitation"`
	SolarRadiation     float64 `json:"solar_radiation"`
	RelativeHumidity   float64 `json:"relative_humidity"`
	WindSpeed          float64 `json:"wind_speed"`
	SurfacePressure    float64 `json:"surface_pressure"`
	SurfaceElevation   float64 `json:"surface_elevation"`
	AvgNDVI            float64 `json:"avg_ndvi"`

	SoilPHLevel         float64 `json:"soil_ph_level"`
	SoilOrganicCarbon   float64 `json:"soil_organic_carbon"`
	SoilNitrogenContent float64 `json:"soil_nitrogen_content"`
	SoilSandRatio       float64 `json:"soil_sand_ratio"`
	SoilClayRatio       float64 `json:"soil_clay_ratio"`

	// YieldTaPerHa is a legacy placeholder carried through cleaning; it is
	// not a meaningful input.
	YieldTaPerHa   float64 `json:"yield_ta_per_ha"`
	AreaThousandHa float64 `json:"area_thousand_ha"`
}

func (in Input) record() Record {
	return Record{
		Province:  in.ProvinceName,
		Commodity: in.Commodity,
		Season:    in.Season,
		Year:      in.Year,
		Values: map[string]float64{
			"avg_temperature":       in.AvgTemperature,
			"min_temperature":       in.MinTemperature,
			"max_temperature":       in.MaxTemperature,
			"surface_temperature":   in.SurfaceTemperature,
			"wet_bulb_temperature":  in.WetBulbTemperature,
			"precipitation":         in.Precipitation,
			"solar_radiation":       in.SolarRadiation,
			"relative_humidity":     in.RelativeHumidity,
			"wind_speed":            in.WindSpeed,
			"surface_pressure":      in.SurfacePressure,
			"surface_elevation":     in.SurfaceElevation,
			"avg_ndvi":              in.AvgNDVI,
			"soil_ph_level":         in.SoilPHLevel,
			"soil_organic_carbon":   in.SoilOrganicCarbon,
			"soil_nitrogen_content": in.SoilNitrogenContent,
			"soil_sand_ratio":       in.SoilSandRatio,
			"soil_clay_ratio":       in.SoilClayRatio,
			colYieldRaw:             in.YieldTaPerHa,
			colArea:                 in.AreaThousandHa,
		},
	}
}

// Prediction is one pipeline result, in original (non-log) units.
type Prediction struct {
	YieldTonPerHa    float64
	ProductionTonnes float64
	ModelsUsed       []string
}

// Predictor owns the historical dataset and the fitted artifacts as
// long-lived state: construct once, Load once, Predict many times. All held
// state is read-only during prediction; each call works on a private copy of
// the combined series, so concurrent calls never observe each other's
// appended row.
type Predictor struct {
	cfg    Config
	logger *zap.Logger

	history []Record
	pre     *Preprocessor
	bank    *ModelBank
	loaded  bool
}

func NewPredictor(cfg Config, logger *zap.Logger) *Predictor {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	return &Predictor{cfg: cfg, logger: logger}
}

// Load transitions the predictor from Unloaded to Ready. Missing historical
// data, preprocessor, or model files degrade with a warning instead of
// failing; a missing history only becomes fatal at Predict time. Load runs
// once per predictor and is never re-attempted within a process.
func (p *Predictor) Load() error {
	if p.loaded {
		return nil
	}

	history, err := LoadHistoricalCSV(p.cfg.DataFile)
	if err != nil {
		p.logger.Warn("historical data not loaded; predictions will fail until it exists",
			zap.String("file", p.cfg.DataFile), zap.Error(err))
	} else {
		p.history = history
		p.logger.Info("loaded historical data",
			zap.String("file", p.cfg.DataFile), zap.Int("records", len(history)))
	}

	pre, err := LoadPreprocessor(p.cfg.PreprocessorFile)
	if err != nil {
		p.logger.Warn("preprocessor not loaded; features pass through unscaled",
			zap.String("file", p.cfg.PreprocessorFile), zap.Error(err))
	} else {
		p.pre = pre
	}

	p.bank = LoadModels(p.cfg.ModelsDir, p.logger)

	if p.cfg.WeightsFile != "" {
		if _, err := os.Stat(p.cfg.WeightsFile); err == nil {
			if w, err := loadWeights(p.cfg.WeightsFile); err != nil {
				p.logger.Warn("weights override not loaded; using defaults", zap.Error(err))
			} else {
				p.cfg.Weights = w
				p.logger.Info("loaded ensemble weights override", zap.String("file", p.cfg.WeightsFile))
			}
		}
	}

	p.loaded = true
	return nil
}

// Ready reports whether Predict can succeed at all.
func (p *Predictor) Ready() bool { return p.loaded && p.history != nil }

// HistoryLen returns the number of loaded historical records.
func (p *Predictor) HistoryLen() int { return len(p.history) }

// HasPreprocessor reports whether the fitted transform loaded.
func (p *Predictor) HasPreprocessor() bool { return p.pre != nil }

// ModelNames returns the names of the loaded models.
func (p *Predictor) ModelNames() []string {
	if p.bank == nil {
		return nil
	}
	return p.bank.Names()
}

// Predict runs the full pipeline for one observation: feature engineering
// over history plus the input, scaling, per-model scoring, ensembling, and
// the inverse log1p transform. Production is derived as yield × area × 1000
// (area arrives in thousand hectares, production leaves in tonnes).
func (p *Predictor) Predict(in Input) (*Prediction, error) {
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	if p.history == nil {
		return nil, ErrNoHistory
	}
	if in.AreaThousandHa <= 0 {
		return nil, fmt.Errorf("input observation: area_thousand_ha must be positive")
	}

	row, err := ProcessSingleInput(in.record(), p.history)
	if err != nil {
		return nil, fmt.Errorf("feature engineering: %w", err)
	}

	if p.pre != nil {
		row, err = p.pre.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("preprocessing: %w", err)
		}
	}

	preds := p.bank.Score(row)
	logYield, ok := Combine(preds, p.cfg.Weights)
	if !ok {
		return nil, ErrNoPrediction
	}

	yield := math.Expm1(logYield)
	used := make([]string, 0, len(preds))
	for name := range preds {
		used = append(used, name)
	}
	sort.Strings(used)

	return &Prediction{
		YieldTonPerHa:    yield,
		ProductionTonnes: yield * in.AreaThousandHa * 1000,
		ModelsUsed:       used,
	}, nil
}

// Provinces returns the distinct province names present in the loaded
// history, sorted.
func (p *Predictor) Provinces() []string {
	seen := make(map[string]struct{})
	for _, rec := range p.history {
		if rec.Province != "" {
			seen[rec.Province] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ProvinceClimateSummary computes historical mean values of the climate
// columns for one province. This feeds dashboard displays only; the
// prediction pipeline never consumes it.
func (p *Predictor) ProvinceClimateSummary(province string) (map[string]float64, bool) {
	series := make(map[string][]float64)
	found := false
	for _, rec := range p.history {
		if rec.Province != province {
			continue
		}
		found = true
		for col, v := range rec.Values {
			series[col] = append(series[col], v)
		}
	}
	if !found {
		return nil, false
	}
	out := make(map[string]float64, len(series))
	for col, vals := range series {
		if m, err := stats.Mean(vals); err == nil {
			out[col] = m
		}
	}
	return out, true
}
