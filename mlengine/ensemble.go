package mlengine

import "sort"

// Combine merges per-model predictions (in log1p-yield space) into one value
// using the configured weight table. Weights of the models that actually
// produced a prediction are renormalized to sum to 1; when every present
// model has zero configured weight the combiner falls back to an equal
// 1/N weighting. The second return is false only when no model predicted.
func Combine(preds map[string]float64, weights Weights) (float64, bool) {
	if len(preds) == 0 {
		return 0, false
	}

	names := make([]string, 0, len(preds))
	for name := range preds {
		names = append(names, name)
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		total += weights[name]
	}

	var combined float64
	if total > 0 {
		for _, name := range names {
			combined += preds[name] * (weights[name] / total)
		}
	} else {
		for _, name := range names {
			combined += preds[name]
		}
		combined /= float64(len(names))
	}
	return combined, true
}
