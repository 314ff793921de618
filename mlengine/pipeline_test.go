package mlengine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeHistoryCSV writes eight consecutive years of synthetic An Giang
// spring rice observations.
func writeHistoryCSV(t *testing.T, dir string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("province_name,commodity,season,year,avg_temperature,min_temperature,max_temperature,wet_bulb_temperature,precipitation,solar_radiation,soil_ph_level,yield_ta_per_ha,area_thousand_ha,production_thousand_tonnes,latitude,longitude\n")
	for year := 2016; year <= 2023; year++ {
		i := year - 2016
		fmt.Fprintf(&b, "An Giang,rice,spring,%d,%.1f,22.0,33.5,24.0,%.1f,18.2,6.1,%.1f,%.1f,700.0,10.5,105.1\n",
			year, 26.5+0.2*float64(i), 1450+10*float64(i), 60+float64(i), 230+float64(i))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "history.csv"), []byte(b.String()), 0o644))
}

func writeArtifacts(t *testing.T, dir string, models map[string]float64, withPreprocessor bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	for name, leaf := range models {
		file := filepath.Join(dir, "models", name+"_yield_model.json")
		require.NoError(t, os.WriteFile(file, []byte(leafModelJSON(name, leaf)), 0o644))
	}
	if withPreprocessor {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "preprocessor.json"),
			[]byte(testPreprocessorJSON), 0o644))
	}
}

func springRiceInput(year int) Input {
	return Input{
		ProvinceName:       "An Giang",
		Year:               year,
		Commodity:          "rice",
		Season:             "spring",
		AvgTemperature:     27.5,
		MinTemperature:     22.5,
		MaxTemperature:     34.0,
		WetBulbTemperature: 24.5,
		Precipitation:      1480,
		SolarRadiation:     18.0,
		SoilPHLevel:        6.2,
		AreaThousandHa:     10.0,
	}
}

func loadedPredictor(t *testing.T, dir string) *Predictor {
	t.Helper()
	p := NewPredictor(DefaultConfig(dir), zap.NewNop())
	require.NoError(t, p.Load())
	return p
}

func TestPredictEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, map[string]float64{"lgb": 1.2, "rf": 1.0}, true)

	p := loadedPredictor(t, dir)
	require.True(t, p.Ready())
	require.Equal(t, 8, p.HistoryLen())

	pred, err := p.Predict(springRiceInput(2024))
	require.NoError(t, err)

	wantLog := 0.5076*1.2 + 0.4924*1.0
	assert.InDelta(t, math.Expm1(wantLog), pred.YieldTonPerHa, 1e-12)
	assert.InDelta(t, pred.YieldTonPerHa*10.0*1000, pred.ProductionTonnes, 1e-9)
	assert.Equal(t, []string{"lgb", "rf"}, pred.ModelsUsed)
}

func TestPredictSurvivesAnySingleMissingModel(t *testing.T) {
	for _, absent := range []string{"lgb", "rf"} {
		models := map[string]float64{"lgb": 1.2, "rf": 1.0}
		delete(models, absent)

		dir := t.TempDir()
		writeHistoryCSV(t, dir)
		writeArtifacts(t, dir, models, true)

		pred, err := loadedPredictor(t, dir).Predict(springRiceInput(2024))
		require.NoErrorf(t, err, "pipeline must degrade, not fail, without %s", absent)
		assert.Len(t, pred.ModelsUsed, 1)
	}
}

func TestPredictNoModelsSignalsNoPrediction(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, nil, true)

	_, err := loadedPredictor(t, dir).Predict(springRiceInput(2024))
	assert.ErrorIs(t, err, ErrNoPrediction)
}

func TestPredictWithoutPreprocessorPassesThrough(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, map[string]float64{"rf": 1.0}, false)

	p := loadedPredictor(t, dir)
	assert.False(t, p.HasPreprocessor())

	pred, err := p.Predict(springRiceInput(2024))
	require.NoError(t, err)
	assert.InDelta(t, math.Expm1(1.0), pred.YieldTonPerHa, 1e-12)
}

func TestPredictWithoutHistoryFailsFast(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, map[string]float64{"rf": 1.0}, true)

	_, err := loadedPredictor(t, dir).Predict(springRiceInput(2024))
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestPredictBeforeLoad(t *testing.T) {
	p := NewPredictor(DefaultConfig(t.TempDir()), zap.NewNop())
	_, err := p.Predict(springRiceInput(2024))
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestPredictRejectsNonPositiveArea(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, map[string]float64{"rf": 1.0}, true)
	p := loadedPredictor(t, dir)

	in := springRiceInput(2024)
	in.AreaThousandHa = 0
	_, err := p.Predict(in)
	assert.ErrorContains(t, err, "area_thousand_ha")
}

func TestPredictDoesNotAccumulatePhantomHistory(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, map[string]float64{"lgb": 1.2, "rf": 1.0}, true)
	p := loadedPredictor(t, dir)

	first, err := p.Predict(springRiceInput(2024))
	require.NoError(t, err)
	second, err := p.Predict(springRiceInput(2024))
	require.NoError(t, err)

	assert.Equal(t, 8, p.HistoryLen())
	assert.Equal(t, first.YieldTonPerHa, second.YieldTonPerHa)
	assert.Equal(t, first.ProductionTonnes, second.ProductionTonnes)
}

func TestWeightsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, map[string]float64{"lgb": 1.2, "rf": 1.0}, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "weights.yaml"),
		[]byte("lgb: 1.0\nrf: 0.0\n"), 0o644))

	pred, err := loadedPredictor(t, dir).Predict(springRiceInput(2024))
	require.NoError(t, err)
	assert.InDelta(t, math.Expm1(1.2), pred.YieldTonPerHa, 1e-12)
}

func TestProvinceStatistics(t *testing.T) {
	dir := t.TempDir()
	writeHistoryCSV(t, dir)
	writeArtifacts(t, dir, nil, false)
	p := loadedPredictor(t, dir)

	assert.Equal(t, []string{"An Giang"}, p.Provinces())

	means, ok := p.ProvinceClimateSummary("An Giang")
	require.True(t, ok)
	// avg_temperature runs 26.5 .. 27.9 in steps of 0.2.
	assert.InDelta(t, 27.2, means["avg_temperature"], 1e-9)

	_, ok = p.ProvinceClimateSummary("Ca Mau")
	assert.False(t, ok)
}
