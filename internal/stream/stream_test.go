package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/features"
	"tradingmodels/internal/loader"
	"tradingmodels/internal/pipeline"
	"tradingmodels/internal/provider/providertest"
)

func testConfig() daytrading.Config {
	cfg := daytrading.DefaultConfig()
	cfg.FeatureWindows = []int{5, 10}
	cfg.RSIWindow = 5
	cfg.Epochs = 2
	cfg.MaxStreamPoints = 25
	return cfg
}

func newPipeline(t *testing.T, cfg daytrading.Config, src *providertest.Static) *pipeline.Pipeline {
	t.Helper()
	l := loader.New(src, loader.NewFileCache(t.TempDir()), nil)
	p, err := pipeline.New(cfg, t.TempDir(), l, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewWithoutModel(t *testing.T) {
	p := newPipeline(t, testConfig(), providertest.New(providertest.Bars(50)))
	_, err := New(p, nil)
	if !errors.Is(err, apperr.ErrArtifactNotFound) {
		t.Errorf("expected artifact not found, got %v", err)
	}
}

func TestLatestPoints(t *testing.T) {
	cfg := testConfig()
	src := providertest.New(providertest.Bars(120))
	p := newPipeline(t, cfg, src)
	if _, err := p.Train(context.Background(), false); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	s, err := New(p, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	calls := src.Calls()
	points, err := s.LatestPoints(context.Background())
	if err != nil {
		t.Fatalf("LatestPoints failed: %v", err)
	}
	if src.Calls() != calls+1 {
		t.Error("expected a forced refetch")
	}
	if len(points) != cfg.MaxStreamPoints {
		t.Fatalf("expected %d points, got %d", cfg.MaxStreamPoints, len(points))
	}

	bars := providertest.Bars(120)
	// the newest point is the second to last bar; the last bar has no target
	if last := points[len(points)-1]; !last.Time.Equal(bars[len(bars)-2].Time) {
		t.Errorf("expected newest point at %v, got %v", bars[len(bars)-2].Time, last.Time)
	}
	for i, pt := range points {
		if i > 0 && !pt.Time.After(points[i-1].Time) {
			t.Fatalf("points not chronological at %d", i)
		}
		if pt.Probability < 0 || pt.Probability > 1 {
			t.Fatalf("probability out of range: %v", pt.Probability)
		}
		if (pt.Probability > 0.5) != (pt.Signal == 1) {
			t.Fatalf("signal %d disagrees with probability %v", pt.Signal, pt.Probability)
		}
	}
}

func TestLatestPointsNoRows(t *testing.T) {
	cfg := testConfig()
	src := providertest.New(providertest.Bars(80))
	p := newPipeline(t, cfg, src)
	if _, err := p.Train(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	s, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}

	// too few bars to warm up the 10-bar window
	src.SetBars(providertest.Bars(8))
	points, err := s.LatestPoints(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Errorf("expected empty points, got %v", points)
	}
}

func TestLatestPointsSchemaMismatch(t *testing.T) {
	cfg := testConfig()
	bars := providertest.Bars(80)
	trainDir := t.TempDir()
	cacheDir := t.TempDir()

	l := loader.New(providertest.New(bars), loader.NewFileCache(cacheDir), nil)
	p, err := pipeline.New(cfg, trainDir, l, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Train(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	// same storage, different windows: the bundle no longer matches
	other := cfg.Clone()
	other.FeatureWindows = []int{5}
	p2, err := pipeline.New(other, trainDir, l, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(p2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LatestPoints(context.Background()); !errors.Is(err, apperr.ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestNewRejectsModelForOtherTarget(t *testing.T) {
	cfg := testConfig()
	trainDir := t.TempDir()
	l := loader.New(providertest.New(providertest.Bars(80)), loader.NewFileCache(t.TempDir()), nil)
	p, err := pipeline.New(cfg, trainDir, l, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Train(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		modify func(c *daytrading.Config)
	}{
		{"other symbol", func(c *daytrading.Config) { c.Symbol = "MSFT" }},
		{"other interval", func(c *daytrading.Config) { c.Interval = "5m" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := cfg.Clone()
			tt.modify(&other)
			p2, err := pipeline.New(other, trainDir, l, nil)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := New(p2, nil); !errors.Is(err, apperr.ErrSchemaMismatch) {
				t.Errorf("expected schema mismatch, got %v", err)
			}
		})
	}

	lower := cfg.Clone()
	lower.Symbol = "aapl"
	p3, err := pipeline.New(lower, trainDir, l, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(p3, nil); err != nil {
		t.Errorf("symbol case should not matter: %v", err)
	}
}

func TestToPoints(t *testing.T) {
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	rows := make([]features.Row, 4)
	for i := range rows {
		rows[i] = features.Row{Time: base.Add(time.Duration(i) * time.Minute), Close: float64(10 + i)}
	}
	proba := []float64{0.2, 0.5, 0.51, 0.9}

	points := ToPoints(rows, proba, 3)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Price != 11 || points[0].Signal != 0 {
		t.Errorf("probability 0.5 must not signal: %+v", points[0])
	}
	if points[1].Signal != 1 || points[2].Signal != 1 {
		t.Errorf("expected signals for 0.51 and 0.9: %+v", points)
	}

	if all := ToPoints(rows, proba, 0); len(all) != 4 {
		t.Errorf("limit 0 keeps every point, got %d", len(all))
	}
}
