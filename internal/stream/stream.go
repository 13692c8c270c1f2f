package stream

import (
	"context"
	"strings"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/classifier"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/features"
	"tradingmodels/internal/loader"
	"tradingmodels/internal/logger"
	"tradingmodels/pkg/model"
)

// SignalThreshold is the probability above which a point signals 1
const SignalThreshold = 0.5

// Source is the part of a training pipeline the streamer needs
type Source interface {
	Config() daytrading.Config
	Loader() *loader.Loader
	LoadModel() (*classifier.Classifier, error)
}

// Streamer emits stream points from a loaded model
type Streamer struct {
	cfg    daytrading.Config
	loader *loader.Loader
	model  *classifier.Classifier
	log    *logger.Logger
}

// New loads the persisted model; it fails with an artifact_not_found error
// when nothing has been trained yet, and with schema_mismatch when the model
// was trained for another symbol or interval.
func New(src Source, log *logger.Logger) (*Streamer, error) {
	clf, err := src.LoadModel()
	if err != nil {
		return nil, err
	}
	cfg := src.Config()
	trained := clf.Config()
	if !strings.EqualFold(trained.Symbol, cfg.Symbol) || trained.Interval != cfg.Interval {
		return nil, apperr.New(apperr.KindSchemaMismatch, "model was trained on %s %s, requested %s %s",
			trained.Symbol, trained.Interval, cfg.Symbol, cfg.Interval)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Streamer{
		cfg:    cfg,
		loader: src.Loader(),
		model:  clf,
		log:    log,
	}, nil
}

// LatestPoints refetches bars, scores every feature row and returns the most
// recent MaxStreamPoints in chronological order. No rows yields an empty slice.
func (s *Streamer) LatestPoints(ctx context.Context) ([]model.StreamPoint, error) {
	bars, err := s.loader.Load(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.LookbackDays, true)
	if err != nil {
		return nil, err
	}

	set, err := features.Engineer(bars, s.cfg)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return []model.StreamPoint{}, nil
	}
	if err := s.model.CheckColumns(set.Columns); err != nil {
		return nil, err
	}

	proba, err := s.model.PredictProba(set.Matrix())
	if err != nil {
		return nil, err
	}

	points := ToPoints(set.Rows, proba, s.cfg.MaxStreamPoints)
	s.log.Debug("stream points computed",
		logger.String("symbol", s.cfg.Symbol),
		logger.Int("rows", set.Len()),
		logger.Int("points", len(points)))
	return points, nil
}

// ToPoints pairs rows with probabilities and keeps the last limit points
func ToPoints(rows []features.Row, proba []float64, limit int) []model.StreamPoint {
	start := 0
	if limit > 0 && len(rows) > limit {
		start = len(rows) - limit
	}

	points := make([]model.StreamPoint, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		signal := 0
		if proba[i] > SignalThreshold {
			signal = 1
		}
		points = append(points, model.StreamPoint{
			Time:        rows[i].Time,
			Price:       rows[i].Close,
			Probability: proba[i],
			Signal:      signal,
		})
	}
	return points
}
