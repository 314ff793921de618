package mlengine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

const epsilon = 1e-6

// ProcessSingleInput appends the input observation to a private copy of the
// historical records, runs the full feature-engineering sequence over the
// combined series, and returns the engineered row for the input only.
//
// Temporal features for the input may only reference strictly prior years in
// the same (province, commodity, season) group; the trailing windows are
// shifted back one step before averaging so the input year never feeds its
// own features.
func ProcessSingleInput(input Record, history []Record) (FeatureRow, error) {
	if input.Year == 0 {
		return FeatureRow{}, fmt.Errorf("input observation: year is required")
	}
	if input.Province == "" && input.Commodity == "" && input.Season == "" {
		return FeatureRow{}, fmt.Errorf("input observation: grouping keys (province_name, commodity, season) are all missing")
	}

	combined := make([]Record, 0, len(history)+1)
	for _, rec := range history {
		combined = append(combined, rec.clone())
	}
	in := input.clone()
	in.input = true
	combined = append(combined, in)

	for i := range combined {
		initialCleaning(&combined[i])
		logTransform(&combined[i])
	}
	deriveDomainFeatures(combined)
	deriveTemporalFeatures(combined)

	for i := range combined {
		if combined[i].input {
			return extractFeatureRow(combined[i]), nil
		}
	}
	return FeatureRow{}, fmt.Errorf("input observation lost during feature derivation")
}

// initialCleaning drops geolocation and absolute production columns and
// converts the raw yield unit (per 10 ha) into tonnes per hectare.
func initialCleaning(rec *Record) {
	for col := range rec.Values {
		if strings.HasPrefix(col, "latitude") || strings.HasPrefix(col, "longitude") {
			delete(rec.Values, col)
		}
	}
	delete(rec.Values, colProduction)

	if v, ok := rec.Values[colYieldRaw]; ok {
		rec.Values[colYieldTonHa] = v / 10
		delete(rec.Values, colYieldRaw)
	}
}

// logTransform replaces the skewed yield and area columns with
// log1p(max(v, 0)).
func logTransform(rec *Record) {
	for _, col := range []string{colYieldTonHa, colArea} {
		if v, ok := rec.Values[col]; ok {
			rec.Values["log1p_"+col] = math.Log1p(math.Max(v, 0))
			delete(rec.Values, col)
		}
	}
}

// setFeature stores a derived value, normalizing NaN/±Inf to missing.
func setFeature(rec *Record, col string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	rec.Values[col] = v
}

// deriveDomainFeatures adds the row-wise agronomic features plus the
// per-province temperature anomaly, which needs the whole combined series.
func deriveDomainFeatures(combined []Record) {
	provinceTemps := make(map[string][]float64)
	for _, rec := range combined {
		if t, ok := rec.Values[colAvgTemp]; ok {
			provinceTemps[rec.Province] = append(provinceTemps[rec.Province], t)
		}
	}
	provinceMean := make(map[string]float64, len(provinceTemps))
	for province, temps := range provinceTemps {
		if m, err := stats.Mean(temps); err == nil {
			provinceMean[province] = m
		}
	}

	for i := range combined {
		rec := &combined[i]

		var soil []float64
		for col, v := range rec.Values {
			if strings.HasPrefix(col, "soil_") && !strings.Contains(col, "scaled") {
				soil = append(soil, v)
			}
		}
		if m, err := stats.Mean(soil); err == nil {
			setFeature(rec, "soil_quality_index", m)
		}

		avgT, hasAvg := rec.Values[colAvgTemp]
		minT, hasMin := rec.Values[colMinTemp]
		maxT, hasMax := rec.Values[colMaxTemp]
		wetT, hasWet := rec.Values[colWetBulbTemp]
		precip, hasPrecip := rec.Values[colPrecip]
		solar, hasSolar := rec.Values[colSolarRad]

		if hasMax && hasMin {
			setFeature(rec, "temp_range", maxT-minT)
		}
		if hasAvg && hasWet {
			setFeature(rec, "humidity_deficit", avgT-wetT)
		}
		if hasPrecip && hasAvg {
			setFeature(rec, "precipitation_efficiency", precip/(avgT+epsilon))
		}
		if mean, ok := provinceMean[rec.Province]; ok && hasAvg {
			setFeature(rec, "temp_anomaly", avgT-mean)
		}
		if hasPrecip && hasSolar {
			setFeature(rec, "season_length_proxy", precip*solar)
		}
		if hasMax {
			setFeature(rec, "heat_stress", math.Max(maxT-35, 0))
		}
		if hasMin {
			setFeature(rec, "cold_stress", math.Max(20-minT, 0))
		}
		if hasPrecip && hasAvg && hasWet {
			setFeature(rec, "wetness_index", precip*(avgT-wetT))
		}
	}
}

// deriveTemporalFeatures adds lag/mean/delta features over every numeric
// base column for each record, computed within its (province, commodity,
// season) group ordered by year ascending. Groups shorter than a window
// simply leave the corresponding features missing.
func deriveTemporalFeatures(combined []Record) {
	baseCols := baseColumns(combined)

	groups := make(map[string][]*Record)
	for i := range combined {
		key := combined[i].groupKey()
		groups[key] = append(groups[key], &combined[i])
	}

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Year < group[j].Year })

		for _, col := range baseCols {
			values := make([]float64, len(group))
			present := make([]bool, len(group))
			for i, rec := range group {
				values[i], present[i] = rec.Values[col]
			}

			for i, rec := range group {
				for _, w := range temporalWindows {
					if j := i - w; j >= 0 && present[j] {
						setFeature(rec, fmt.Sprintf("%s_lag_%d", col, w), values[j])
					}

					// Trailing mean over up to w values strictly before row i.
					lo := i - w
					if lo < 0 {
						lo = 0
					}
					var sum float64
					var n int
					for j := lo; j < i; j++ {
						if present[j] {
							sum += values[j]
							n++
						}
					}
					if n > 0 {
						setFeature(rec, fmt.Sprintf("%s_mean_%d", col, w), sum/float64(n))
					}

					if prev, base := i-1, i-w-1; prev >= 0 && base >= 0 && present[prev] && present[base] {
						setFeature(rec, fmt.Sprintf("%s_delta_%d", col, w), values[prev]-values[base])
					}
				}
			}
		}
	}
}

// baseColumns is the sorted union of numeric columns across the combined
// series, before any temporal feature has been added. Year and the grouping
// keys are structural fields and never base columns.
func baseColumns(combined []Record) []string {
	set := make(map[string]struct{})
	for _, rec := range combined {
		for col := range rec.Values {
			set[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for col := range set {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func extractFeatureRow(rec Record) FeatureRow {
	values := make(map[string]float64, len(rec.Values)+1)
	for k, v := range rec.Values {
		values[k] = v
	}
	values[colYear] = float64(rec.Year)
	return FeatureRow{
		Columns: sortedKeys(values),
		Values:  values,
		Labels: map[string]string{
			colProvince:  rec.Province,
			colCommodity: rec.Commodity,
			colSeason:    rec.Season,
		},
	}
}
