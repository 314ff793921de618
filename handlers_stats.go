package main

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// handleListProvinces returns the distinct provinces in the loaded history,
// for dashboard dropdowns.
func (a *App) handleListProvinces(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.predictor.Provinces())
}

// handleProvinceClimate returns historical mean climate/soil values for one
// province. Display data only; the prediction contract never reads it.
func (a *App) handleProvinceClimate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	means, ok := a.predictor.ProvinceClimateSummary(name)
	if !ok {
		http.Error(w, "unknown province", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(provinceClimateResp{Province: name, Means: means})
}

// handleHealth reports readiness: which artifacts loaded and how much
// history backs the temporal features.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !a.predictor.Ready() {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResp{
		Status:       status,
		History:      a.predictor.HistoryLen(),
		Preprocessor: a.predictor.HasPreprocessor(),
		Models:       a.predictor.ModelNames(),
	})
}
