package classifier

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/store"
)

// SchemaVersion identifies the bundle layout
const SchemaVersion = 1

// State is everything needed to predict: scaler and model are always saved
// and loaded together.
type State struct {
	SchemaVersion int               `json:"schema_version"`
	Columns       []string          `json:"feature_columns"`
	Config        daytrading.Config `json:"config"`
	Scaler        *Scaler           `json:"scaler"`
	Model         *SGD              `json:"model"`
	FittedAt      time.Time         `json:"fitted_at"`
}

func (s *State) validate() error {
	if s.SchemaVersion != SchemaVersion {
		return apperr.New(apperr.KindSchemaMismatch, "bundle schema version %d, expected %d", s.SchemaVersion, SchemaVersion)
	}
	if s.Scaler == nil || s.Model == nil {
		return fmt.Errorf("bundle is missing scaler or model")
	}
	n := len(s.Columns)
	if len(s.Scaler.Mean) != n || len(s.Scaler.Scale) != n || len(s.Model.Coef) != n {
		return apperr.New(apperr.KindSchemaMismatch, "bundle has %d columns but %d scaler and %d model weights",
			n, len(s.Scaler.Mean), len(s.Model.Coef))
	}
	return nil
}

// Classifier owns one State slot; Fit and Load replace it wholesale
type Classifier struct {
	cfg     daytrading.Config
	columns []string
	path    string

	// OnEpoch is called after each training pass
	OnEpoch func(EpochMetrics)

	mu    sync.RWMutex
	state *State
}

// New creates an unfitted classifier whose bundle lives in dir
func New(cfg daytrading.Config, columns []string, dir string) *Classifier {
	return &Classifier{
		cfg:     cfg.Clone(),
		columns: append([]string(nil), columns...),
		path:    filepath.Join(dir, cfg.ModelFilename),
	}
}

// Config returns the configuration of the current state, or the one given to New
func (c *Classifier) Config() daytrading.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != nil {
		return c.state.Config.Clone()
	}
	return c.cfg.Clone()
}

// Fit trains a fresh scaler and model on the training split and records
// validation metrics after every pass. epochs <= 0 uses the configured count.
func (c *Classifier) Fit(XTrain [][]float64, yTrain []int, XVal [][]float64, yVal []int, epochs int) ([]EpochMetrics, error) {
	if len(XTrain) == 0 {
		return nil, apperr.New(apperr.KindNoData, "no training rows")
	}
	if len(XTrain) != len(yTrain) || len(XVal) != len(yVal) {
		return nil, fmt.Errorf("features and labels differ in length")
	}
	if epochs <= 0 {
		epochs = c.cfg.Epochs
	}
	if err := checkLabels(yTrain); err != nil {
		return nil, err
	}

	scaler, err := FitScaler(XTrain)
	if err != nil {
		return nil, err
	}
	if len(c.columns) != 0 && len(c.columns) != len(scaler.Mean) {
		return nil, apperr.New(apperr.KindSchemaMismatch, "%d feature columns but rows have %d values", len(c.columns), len(scaler.Mean))
	}
	trainScaled, err := scaler.Transform(XTrain)
	if err != nil {
		return nil, err
	}
	valScaled, err := scaler.Transform(XVal)
	if err != nil {
		return nil, err
	}

	next := &State{
		SchemaVersion: SchemaVersion,
		Columns:       append([]string(nil), c.columns...),
		Config:        c.cfg.Clone(),
		Scaler:        scaler,
		Model:         newSGD(len(scaler.Mean), DefaultAlpha, c.cfg.RandomState),
	}

	// initialization pass, then one pass per epoch
	next.Model.Pass(trainScaled, yTrain)

	history := make([]EpochMetrics, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		next.Model.Pass(trainScaled, yTrain)
		m := EpochMetrics{Metrics: scoreScaled(next.Model, valScaled, yVal), Epoch: epoch}
		history = append(history, m)
		if c.OnEpoch != nil {
			c.OnEpoch(m)
		}
	}
	next.FittedAt = time.Now().UTC()

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	return history, nil
}

// Evaluate scores the fitted model on X
func (c *Classifier) Evaluate(X [][]float64, y []int) (Metrics, error) {
	state, err := c.current()
	if err != nil {
		return Metrics{}, err
	}
	if len(X) != len(y) {
		return Metrics{}, fmt.Errorf("features and labels differ in length")
	}
	scaled, err := state.Scaler.Transform(X)
	if err != nil {
		return Metrics{}, err
	}
	return scoreScaled(state.Model, scaled, y), nil
}

// Predict returns 0/1 labels for X
func (c *Classifier) Predict(X [][]float64) ([]int, error) {
	state, err := c.current()
	if err != nil {
		return nil, err
	}
	scaled, err := state.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(scaled))
	for i, x := range scaled {
		if state.Model.Decision(x) > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

// PredictProba returns the positive class probability for each row of X
func (c *Classifier) PredictProba(X [][]float64) ([]float64, error) {
	state, err := c.current()
	if err != nil {
		return nil, err
	}
	scaled, err := state.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(scaled))
	for i, x := range scaled {
		out[i] = state.Model.Proba(x)
	}
	return out, nil
}

// CheckColumns verifies that cols match the columns the model was fitted on
func (c *Classifier) CheckColumns(cols []string) error {
	state, err := c.current()
	if err != nil {
		return err
	}
	if len(cols) != len(state.Columns) {
		return apperr.New(apperr.KindSchemaMismatch, "model expects %d features, got %d", len(state.Columns), len(cols))
	}
	for i := range cols {
		if cols[i] != state.Columns[i] {
			return apperr.New(apperr.KindSchemaMismatch, "feature %d is %q, model expects %q", i, cols[i], state.Columns[i])
		}
	}
	return nil
}

// Save writes the bundle atomically
func (c *Classifier) Save() error {
	state, err := c.current()
	if err != nil {
		return err
	}
	if err := store.WriteJSON(c.path, state); err != nil {
		return fmt.Errorf("saving model bundle: %w", err)
	}
	return nil
}

// Load replaces the current state with the bundle on disk
func (c *Classifier) Load() error {
	var state State
	if err := store.ReadJSON(c.path, &state); err != nil {
		if store.IsNotExist(err) {
			return apperr.New(apperr.KindArtifactNotFound, "no trained model at %s", c.path)
		}
		return fmt.Errorf("loading model bundle: %w", err)
	}
	if err := state.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = &state
	c.mu.Unlock()
	return nil
}

func (c *Classifier) current() (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, apperr.New(apperr.KindNotFitted, "classifier has not been fitted or loaded")
	}
	return c.state, nil
}

func scoreScaled(m *SGD, X [][]float64, y []int) Metrics {
	preds := make([]int, len(X))
	proba := make([]float64, len(X))
	for i, x := range X {
		d := m.Decision(x)
		proba[i] = sigmoid(d)
		if d > 0 {
			preds[i] = 1
		}
	}
	return Score(y, preds, proba)
}

func checkLabels(y []int) error {
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %d at row %d is not 0 or 1", v, i)
		}
	}
	return nil
}
