package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/classifier"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/features"
	"tradingmodels/internal/loader"
	"tradingmodels/internal/logger"
	"tradingmodels/internal/store"
	"tradingmodels/pkg/model"
)

// Metadata describes what a model was trained on
type Metadata struct {
	Config   daytrading.Config `json:"config"`
	Data     model.DataSummary `json:"data"`
	Features []string          `json:"features"`
}

// MetricsDocument is the persisted summary of the last run
type MetricsDocument struct {
	RunID      string                    `json:"run_id"`
	Evaluation classifier.Metrics        `json:"evaluation"`
	Metadata   Metadata                  `json:"metadata"`
	History    []classifier.EpochMetrics `json:"history"`
}

// Result is everything a training run produces
type Result struct {
	RunID          string                    `json:"run_id"`
	Evaluation     classifier.Metrics        `json:"evaluation"`
	History        []classifier.EpochMetrics `json:"history"`
	Metadata       Metadata                  `json:"metadata"`
	Report         classifier.Report         `json:"report"`
	TrainRows      int                       `json:"train_rows"`
	ValidationRows int                       `json:"validation_rows"`
	Duration       time.Duration             `json:"duration"`
}

// RunRecorder stores a summary of each finished run
type RunRecorder interface {
	RecordRun(ctx context.Context, run model.RunRecord) error
}

// Pipeline runs training for one configuration and storage directory
type Pipeline struct {
	cfg        daytrading.Config
	storageDir string
	loader     *loader.Loader
	log        *logger.Logger

	recorder RunRecorder
	progress func(classifier.EpochMetrics)
}

// New creates a pipeline; cfg is validated here
func New(cfg daytrading.Config, storageDir string, l *loader.Loader, log *logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		cfg:        cfg.Clone(),
		storageDir: storageDir,
		loader:     l,
		log:        log.With(logger.String("symbol", cfg.Symbol), logger.String("interval", cfg.Interval)),
	}, nil
}

// SetRecorder attaches a run recorder
func (p *Pipeline) SetRecorder(r RunRecorder) {
	p.recorder = r
}

// SetProgress installs a callback invoked after every training epoch
func (p *Pipeline) SetProgress(fn func(classifier.EpochMetrics)) {
	p.progress = fn
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() daytrading.Config {
	return p.cfg.Clone()
}

// Loader returns the bar loader
func (p *Pipeline) Loader() *loader.Loader {
	return p.loader
}

// StorageDir is where artifacts are written
func (p *Pipeline) StorageDir() string {
	return p.storageDir
}

// ModelPath is the location of the model bundle
func (p *Pipeline) ModelPath() string {
	return filepath.Join(p.storageDir, p.cfg.ModelFilename)
}

// MetricsPath is the location of the metrics document
func (p *Pipeline) MetricsPath() string {
	return filepath.Join(p.storageDir, p.cfg.MetricsFilename)
}

// HistoryPath is the location of the history document
func (p *Pipeline) HistoryPath() string {
	return filepath.Join(p.storageDir, p.cfg.HistoryFilename)
}

// IsTrained reports whether a model bundle exists
func (p *Pipeline) IsTrained() bool {
	return store.Exists(p.ModelPath())
}

// SplitIndex is the first validation row for n rows: floor(n*(1-val))
// clamped so both splits keep at least one row.
func SplitIndex(n int, validation float64) (int, error) {
	if n < 2 {
		return 0, apperr.New(apperr.KindNoData, "need at least 2 feature rows to split, got %d", n)
	}
	idx := int(math.Floor(float64(n) * (1 - validation)))
	if idx < 1 {
		idx = 1
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx, nil
}

// Train loads bars, fits a fresh classifier and persists the bundle,
// the metrics document and the history document.
func (p *Pipeline) Train(ctx context.Context, forceDownload bool) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := p.log.With(logger.String("run_id", runID))

	bars, err := p.loader.Load(ctx, p.cfg.Symbol, p.cfg.Interval, p.cfg.LookbackDays, forceDownload)
	if err != nil {
		return nil, err
	}

	set, err := features.Engineer(bars, p.cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, err, "engineering features")
	}

	split, err := SplitIndex(set.Len(), p.cfg.ValidationSize)
	if err != nil {
		return nil, err
	}
	X, y := set.Matrix(), set.Labels()
	XTrain, XVal := X[:split], X[split:]
	yTrain, yVal := y[:split], y[split:]

	log.Info("training started",
		logger.Int("bars", len(bars)),
		logger.Int("train_rows", len(XTrain)),
		logger.Int("validation_rows", len(XVal)),
		logger.Int("epochs", p.cfg.Epochs))

	clf := classifier.New(p.cfg, set.Columns, p.storageDir)
	clf.OnEpoch = func(m classifier.EpochMetrics) {
		log.Debug("epoch finished",
			logger.Int("epoch", m.Epoch),
			logger.Float("accuracy", m.Accuracy),
			logger.Float("f1", m.F1))
		if p.progress != nil {
			p.progress(m)
		}
	}

	history, err := clf.Fit(XTrain, yTrain, XVal, yVal, p.cfg.Epochs)
	if err != nil {
		return nil, err
	}
	evaluation, err := clf.Evaluate(XVal, yVal)
	if err != nil {
		return nil, err
	}
	preds, err := clf.Predict(XVal)
	if err != nil {
		return nil, err
	}

	metadata := Metadata{
		Config:   p.cfg.Clone(),
		Data:     loader.Describe(bars, p.cfg.Symbol),
		Features: set.Columns,
	}

	if err := clf.Save(); err != nil {
		return nil, err
	}
	doc := MetricsDocument{
		RunID:      runID,
		Evaluation: evaluation,
		Metadata:   metadata,
		History:    history,
	}
	if err := store.WriteJSON(p.MetricsPath(), doc); err != nil {
		return nil, fmt.Errorf("saving metrics: %w", err)
	}
	if err := store.WriteJSON(p.HistoryPath(), history); err != nil {
		return nil, fmt.Errorf("saving history: %w", err)
	}

	result := &Result{
		RunID:          runID,
		Evaluation:     evaluation,
		History:        history,
		Metadata:       metadata,
		Report:         classifier.NewReport(yVal, preds),
		TrainRows:      len(XTrain),
		ValidationRows: len(XVal),
		Duration:       time.Since(started),
	}

	log.Info("training finished",
		logger.Float("accuracy", evaluation.Accuracy),
		logger.Float("f1", evaluation.F1),
		logger.Duration("duration", result.Duration))

	p.record(ctx, started, result)
	return result, nil
}

func (p *Pipeline) record(ctx context.Context, started time.Time, r *Result) {
	if p.recorder == nil {
		return
	}
	run := model.RunRecord{
		ID:             r.RunID,
		Symbol:         p.cfg.Symbol,
		Interval:       p.cfg.Interval,
		StartedAt:      started.UTC(),
		FinishedAt:     started.Add(r.Duration).UTC(),
		Rows:           r.TrainRows + r.ValidationRows,
		TrainRows:      r.TrainRows,
		ValidationRows: r.ValidationRows,
		Epochs:         len(r.History),
		Accuracy:       r.Evaluation.Accuracy,
		F1:             r.Evaluation.F1,
		ROCAUC:         r.Evaluation.ROCAUC,
		ModelPath:      p.ModelPath(),
	}
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		p.log.Warn("recording run failed", logger.String("run_id", r.RunID), logger.Error(err))
	}
}

// LoadModel returns a classifier restored from the bundle on disk
func (p *Pipeline) LoadModel() (*classifier.Classifier, error) {
	clf := classifier.New(p.cfg, features.ColumnNames(p.cfg), p.storageDir)
	if err := clf.Load(); err != nil {
		return nil, err
	}
	return clf, nil
}

// LoadMetrics reads the metrics document of the last run
func (p *Pipeline) LoadMetrics() (*MetricsDocument, error) {
	var doc MetricsDocument
	if err := store.ReadJSON(p.MetricsPath(), &doc); err != nil {
		if store.IsNotExist(err) {
			return nil, apperr.New(apperr.KindArtifactNotFound, "no metrics at %s", p.MetricsPath())
		}
		return nil, fmt.Errorf("loading metrics: %w", err)
	}
	return &doc, nil
}

// LoadHistory reads the epoch history of the last run; empty if none
func (p *Pipeline) LoadHistory() ([]classifier.EpochMetrics, error) {
	var history []classifier.EpochMetrics
	if err := store.ReadJSON(p.HistoryPath(), &history); err != nil {
		if store.IsNotExist(err) {
			return []classifier.EpochMetrics{}, nil
		}
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if history == nil {
		history = []classifier.EpochMetrics{}
	}
	return history, nil
}
