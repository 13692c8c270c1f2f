package providertest

import (
	"context"
	"math"
	"sync"
	"time"

	"tradingmodels/pkg/model"
)

// Static serves a fixed bar series
type Static struct {
	mu    sync.Mutex
	bars  []model.Bar
	err   error
	calls int
}

// New creates a provider that returns bars on every call
func New(bars []model.Bar) *Static {
	return &Static{bars: bars}
}

// SetBars replaces the served series
func (s *Static) SetBars(bars []model.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = bars
}

// SetError makes every call fail with err
func (s *Static) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how often GetBars was called
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Static) Name() string      { return "static" }
func (s *Static) IsAvailable() bool { return true }
func (s *Static) RateLimit() int    { return 1000 }

// GetBars returns a copy of the served series
func (s *Static) GetBars(ctx context.Context, symbol, interval string, lookbackDays int) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.Bar(nil), s.bars...), nil
}

// Bars generates n one-minute bars of an oscillating price
func Bars(n int) []model.Bar {
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		price := 100 + 3*math.Sin(float64(i)/4) + 0.4*math.Cos(float64(i)*1.7)
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price - 0.05,
			High:   price + 0.2,
			Low:    price - 0.2,
			Close:  price,
			Volume: 1000 + float64(i%13)*25,
		}
	}
	return bars
}
