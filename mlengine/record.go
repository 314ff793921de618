package mlengine

import "sort"

// Raw schema column names shared between the historical dataset and inputs.
const (
	colProvince  = "province_name"
	colCommodity = "commodity"
	colSeason    = "season"
	colYear      = "year"

	colYieldRaw    = "yield_ta_per_ha"
	colYieldTonHa  = "yield_ton_per_ha"
	colArea        = "area_thousand_ha"
	colProduction  = "production_thousand_tonnes"
	colAvgTemp     = "avg_temperature"
	colMinTemp     = "min_temperature"
	colMaxTemp     = "max_temperature"
	colWetBulbTemp = "wet_bulb_temperature"
	colPrecip      = "precipitation"
	colSolarRad    = "solar_radiation"
)

// Record is one observation row: the grouping keys plus numeric measures.
// A measure absent from Values is a missing value; infinities are never
// stored (normalized to missing at derivation time).
type Record struct {
	Province  string
	Commodity string
	Season    string
	Year      int

	Values map[string]float64

	// input marks the transient observation appended for one prediction.
	input bool
}

// groupKey identifies the independent time series a record belongs to.
func (r Record) groupKey() string {
	return r.Province + "\x00" + r.Commodity + "\x00" + r.Season
}

func (r Record) clone() Record {
	out := r
	out.Values = make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// FeatureRow is a labeled vector: numeric Values in a stable Columns order
// plus the categorical Labels the fitted preprocessor may encode.
type FeatureRow struct {
	Columns []string
	Values  map[string]float64
	Labels  map[string]string
}

// Get returns the value of a numeric column and whether it is present.
func (fr FeatureRow) Get(col string) (float64, bool) {
	v, ok := fr.Values[col]
	return v, ok
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
