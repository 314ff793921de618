package main

import "cropcast/mlengine"

// Request/response DTOs. Keep them minimal and explicit.

// predictReq carries the recognized raw fields of one observation.
type predictReq struct {
	mlengine.Input
}

// predictResp is the output boundary: on any internal pipeline failure the
// API answers zeros rather than an error, so dashboards always render.
type predictResp struct {
	PredictedProduction float64  `json:"predicted_production"`
	PredictedYield      float64  `json:"predicted_yield"`
	PredictedArea       float64  `json:"predicted_area"`
	ModelsUsed          []string `json:"models_used,omitempty"`
}

type provinceClimateResp struct {
	Province string             `json:"province"`
	Means    map[string]float64 `json:"means"`
}

type healthResp struct {
	Status       string   `json:"status"`
	History      int      `json:"history_records"`
	Preprocessor bool     `json:"preprocessor_loaded"`
	Models       []string `json:"models_loaded"`
}
