package features

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"tradingmodels/internal/daytrading"
	"tradingmodels/pkg/model"
)

// rsiEpsilon keeps RSI finite when there are no losses
const rsiEpsilon = 1e-9

// Row is one fully populated, labeled example
type Row struct {
	Time         time.Time `json:"timestamp"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	Values       []float64 `json:"values"` // ordered as Set.Columns
	Target       int       `json:"target"`
	TargetReturn float64   `json:"target_return"`
}

// Set is the engineered output for one bar series
type Set struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows
func (s *Set) Len() int {
	return len(s.Rows)
}

// Matrix returns the feature values row by row
func (s *Set) Matrix() [][]float64 {
	X := make([][]float64, len(s.Rows))
	for i, r := range s.Rows {
		X[i] = r.Values
	}
	return X
}

// Labels returns the binary targets
func (s *Set) Labels() []int {
	y := make([]int, len(s.Rows))
	for i, r := range s.Rows {
		y[i] = r.Target
	}
	return y
}

// ColumnNames returns the feature columns produced for cfg, in order
func ColumnNames(cfg daytrading.Config) []string {
	cols := []string{"return", "log_return", "price_change"}
	for _, w := range cfg.FeatureWindows {
		cols = append(cols,
			fmt.Sprintf("sma_%d", w),
			fmt.Sprintf("ema_%d", w),
			fmt.Sprintf("momentum_%d", w),
			fmt.Sprintf("volatility_%d", w),
			fmt.Sprintf("volume_sma_%d", w),
		)
	}
	return append(cols, "rsi")
}

// Engineer computes the feature columns and the forward target for bars.
// Rows where any window is still warming up, and the final bar, are dropped.
func Engineer(bars []model.Bar, cfg daytrading.Config) (*Set, error) {
	if len(cfg.FeatureWindows) == 0 {
		return nil, fmt.Errorf("no feature windows configured")
	}
	for _, w := range cfg.FeatureWindows {
		if w < 1 {
			return nil, fmt.Errorf("feature window must be positive, got %d", w)
		}
	}
	if cfg.RSIWindow < 1 {
		return nil, fmt.Errorf("rsi window must be positive, got %d", cfg.RSIWindow)
	}

	set := &Set{Columns: ColumnNames(cfg)}
	n := len(bars)
	if n <= cfg.MaxWindow()+1 {
		return set, nil
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	returns := pctChange(closes, 1)
	logReturns := make([]float64, n)
	priceChange := make([]float64, n)
	for i := range closes {
		logReturns[i] = math.Log1p(returns[i])
		if i == 0 {
			priceChange[i] = math.NaN()
		} else {
			priceChange[i] = closes[i] - closes[i-1]
		}
	}

	columns := [][]float64{returns, logReturns, priceChange}
	for _, w := range cfg.FeatureWindows {
		columns = append(columns,
			rollingMean(closes, w),
			ema(closes, 2/float64(w+1)),
			pctChange(closes, w),
			rollingStdDev(returns, w),
			rollingMean(volumes, w),
		)
	}
	columns = append(columns, rsi(closes, cfg.RSIWindow))

	targetReturns := make([]float64, n)
	for i := range targetReturns {
		if i+1 < n {
			targetReturns[i] = returns[i+1]
		} else {
			targetReturns[i] = math.NaN()
		}
	}

	for i := 0; i < n; i++ {
		if !finite(targetReturns[i]) {
			continue
		}
		values := make([]float64, len(columns))
		ok := true
		for j, col := range columns {
			if !finite(col[i]) {
				ok = false
				break
			}
			values[j] = col[i]
		}
		if !ok {
			continue
		}

		target := 0
		if targetReturns[i] > cfg.Threshold {
			target = 1
		}
		set.Rows = append(set.Rows, Row{
			Time:         bars[i].Time,
			Close:        closes[i],
			Volume:       volumes[i],
			Values:       values,
			Target:       target,
			TargetReturn: targetReturns[i],
		})
	}

	return set, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// pctChange is x[i]/x[i-periods] - 1
func pctChange(x []float64, periods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < periods {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-periods] - 1
	}
	return out
}

// rollingMean is the mean of the trailing w values; NaN until w values exist
func rollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < w {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(x[i+1-w:i+1], nil)
	}
	return out
}

// rollingStdDev is the sample standard deviation of the trailing w values.
// Any NaN in the window yields NaN.
func rollingStdDev(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < w {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(x[i+1-w:i+1], nil)
	}
	return out
}

// ema is the recursive exponential average seeded with the first value
func ema(x []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// rsi smooths gains and losses with alpha 1/window starting at the first diff
func rsi(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = math.NaN()

	alpha := 1 / float64(window)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}
		out[i] = RSI(avgGain, avgLoss)
	}
	return out
}

// RSI converts smoothed average gain and loss into the 0-100 oscillator
func RSI(avgGain, avgLoss float64) float64 {
	rs := avgGain / (avgLoss + rsiEpsilon)
	return 100 - 100/(1+rs)
}
