package features

import (
	"math"
	"reflect"
	"testing"
	"time"

	"tradingmodels/internal/daytrading"
	"tradingmodels/pkg/model"
)

func barsFromCloses(closes []float64) []model.Bar {
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 0.1,
			Low:    c - 0.1,
			Close:  c,
			Volume: float64(1000 + 10*i),
		}
	}
	return bars
}

func wave(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 2*math.Sin(float64(i)/3) + 0.05*float64(i%7)
	}
	return closes
}

func testConfig(windows []int, rsiWindow int) daytrading.Config {
	cfg := daytrading.DefaultConfig()
	cfg.FeatureWindows = windows
	cfg.RSIWindow = rsiWindow
	return cfg
}

func TestColumnOrderDeterministic(t *testing.T) {
	cfg := testConfig([]int{5, 15}, 14)
	want := []string{
		"return", "log_return", "price_change",
		"sma_5", "ema_5", "momentum_5", "volatility_5", "volume_sma_5",
		"sma_15", "ema_15", "momentum_15", "volatility_15", "volume_sma_15",
		"rsi",
	}

	bars := barsFromCloses(wave(60))
	for i := 0; i < 3; i++ {
		set, err := Engineer(bars, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(set.Columns, want) {
			t.Fatalf("run %d: unexpected columns %v", i, set.Columns)
		}
	}
	if !reflect.DeepEqual(ColumnNames(cfg), want) {
		t.Errorf("ColumnNames mismatch: %v", ColumnNames(cfg))
	}
}

func TestRowCountDropsWarmupAndFinalBar(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		windows []int
		want    int
	}{
		{"two windows", 100, []int{5, 15}, 100 - 15 - 1},
		{"unsorted windows", 80, []int{30, 5}, 80 - 30 - 1},
		{"exact minimum", 7, []int{5}, 1},
		{"too short", 6, []int{5}, 0},
		{"empty", 0, []int{5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Engineer(barsFromCloses(wave(tt.n)), testConfig(tt.windows, 14))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if set.Len() != tt.want {
				t.Errorf("expected %d rows, got %d", tt.want, set.Len())
			}
			if len(set.Matrix()) != set.Len() || len(set.Labels()) != set.Len() {
				t.Error("matrix and labels must match row count")
			}
		})
	}
}

func TestRowsAreFullyPopulated(t *testing.T) {
	cfg := testConfig([]int{5, 10}, 14)
	bars := barsFromCloses(wave(50))
	set, err := Engineer(bars, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// first row sits at index max(window)
	if !set.Rows[0].Time.Equal(bars[10].Time) {
		t.Errorf("expected first row at bar 10, got %v", set.Rows[0].Time)
	}
	last := set.Rows[set.Len()-1]
	if !last.Time.Equal(bars[len(bars)-2].Time) {
		t.Errorf("expected last row at the second to last bar, got %v", last.Time)
	}

	for _, r := range set.Rows {
		if len(r.Values) != len(set.Columns) {
			t.Fatalf("row width %d != %d columns", len(r.Values), len(set.Columns))
		}
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("column %s not finite at %v", set.Columns[j], r.Time)
			}
		}
	}
}

func TestFeatureValues(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 13, 14, 15, 16}
	cfg := testConfig([]int{3}, 3)
	set, err := Engineer(barsFromCloses(closes), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// valid rows are bars 3..6
	if set.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", set.Len())
	}

	row := set.Rows[0] // bar 3, close 11
	col := func(name string) float64 {
		for j, c := range set.Columns {
			if c == name {
				return row.Values[j]
			}
		}
		t.Fatalf("missing column %s", name)
		return 0
	}

	almost := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}

	almost("return", col("return"), 11.0/12-1)
	almost("log_return", col("log_return"), math.Log(11.0/12))
	almost("price_change", col("price_change"), -1)
	almost("sma_3", col("sma_3"), (11+12+11)/3.0)
	almost("momentum_3", col("momentum_3"), 11.0/10-1)
	almost("volume_sma_3", col("volume_sma_3"), (1010+1020+1030)/3.0)

	// ema with alpha 0.5 seeded at 10: 10, 10.5, 11.25, 11.125
	almost("ema_3", col("ema_3"), 11.125)

	r1, r2, r3 := 11.0/10-1, 12.0/11-1, 11.0/12-1
	mean := (r1 + r2 + r3) / 3
	variance := ((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean) + (r3-mean)*(r3-mean)) / 2
	almost("volatility_3", col("volatility_3"), math.Sqrt(variance))

	almost("target_return", row.TargetReturn, 13.0/11-1)
	if row.Target != 1 {
		t.Errorf("expected target 1, got %d", row.Target)
	}
}

func TestRSIBounded(t *testing.T) {
	closes := make([]float64, 200)
	seed := uint32(7)
	price := 50.0
	for i := range closes {
		seed = seed*1664525 + 1013904223
		price += (float64(seed%1000) - 500) / 1000
		closes[i] = price
	}

	set, err := Engineer(barsFromCloses(closes), testConfig([]int{5}, 14))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx := len(set.Columns) - 1
	for _, r := range set.Rows {
		if v := r.Values[idx]; v < 0 || v > 100 {
			t.Fatalf("rsi out of bounds: %v", v)
		}
	}
}

func TestRSIEqualGainLoss(t *testing.T) {
	if got := RSI(0.8, 0.8); math.Abs(got-50) > 1e-6 {
		t.Errorf("expected 50, got %v", got)
	}
	if got := RSI(1, 0); got < 99.9 {
		t.Errorf("expected near 100 without losses, got %v", got)
	}
	if got := RSI(0, 1); got != 0 {
		t.Errorf("expected 0 without gains, got %v", got)
	}
}

func TestIncreasingSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	cfg := testConfig([]int{5}, 5)
	cfg.Threshold = 0.0005

	set, err := Engineer(barsFromCloses(closes), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 14 {
		t.Fatalf("expected 14 rows, got %d", set.Len())
	}

	idx := len(set.Columns) - 1
	for _, r := range set.Rows {
		if r.Target != 1 {
			t.Errorf("expected target 1 at %v", r.Time)
		}
		if r.Values[idx] < 99 {
			t.Errorf("expected rsi near 100, got %v", r.Values[idx])
		}
	}
}

func TestEngineerRejectsBadWindows(t *testing.T) {
	bars := barsFromCloses(wave(30))
	if _, err := Engineer(bars, testConfig([]int{0}, 14)); err == nil {
		t.Error("expected error for zero window")
	}
	if _, err := Engineer(bars, testConfig(nil, 14)); err == nil {
		t.Error("expected error for missing windows")
	}
	if _, err := Engineer(bars, testConfig([]int{5}, 0)); err == nil {
		t.Error("expected error for zero rsi window")
	}
}
