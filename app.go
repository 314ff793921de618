package main

import (
	"cropcast/mlengine"

	"go.uber.org/zap"
)

// App ties together the config, logger, and the loaded predictor. It is
// constructed exactly once at startup; the predictor's historical data,
// preprocessor, and models are immutable shared-read state for the server's
// lifetime and are never reloaded per request.
type App struct {
	cfg       Config
	logger    *zap.Logger
	predictor *mlengine.Predictor
}

func newApp(cfg Config, logger *zap.Logger) (*App, error) {
	predictor := mlengine.NewPredictor(mlengine.DefaultConfig(cfg.BaseDir), logger)
	if err := predictor.Load(); err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		predictor: predictor,
	}, nil
}
