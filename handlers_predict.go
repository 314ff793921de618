package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// handlePredict runs the prediction pipeline for one observation.
//
// The boundary contract is fail-soft: any pipeline failure (missing history,
// empty ensemble, transform mismatch) answers zeros with the echoed area
// instead of an error status. The distinction between "unavailable" and a
// real zero lives in the predictor's typed errors and in the logs.
func (a *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	resp := predictResp{PredictedArea: req.AreaThousandHa}

	pred, err := a.predictor.Predict(req.Input)
	if err != nil {
		a.logger.Warn("prediction unavailable",
			zap.String("province", req.ProvinceName),
			zap.String("commodity", req.Commodity),
			zap.Int("year", req.Year),
			zap.Error(err))
	} else {
		resp.PredictedYield = pred.YieldTonPerHa
		resp.PredictedProduction = pred.ProductionTonnes
		resp.ModelsUsed = pred.ModelsUsed
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
