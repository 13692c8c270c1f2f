package loader

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/logger"
	"tradingmodels/internal/provider"
	"tradingmodels/pkg/model"
)

// Loader returns cached bars or fetches fresh ones from the provider
type Loader struct {
	provider provider.Provider
	cache    Cache
	log      *logger.Logger
}

// New creates a loader
func New(p provider.Provider, cache Cache, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{provider: p, cache: cache, log: log}
}

// Load returns the bar series for symbol. Without force, a cached series is
// returned unchanged; otherwise bars are fetched once and the cache is overwritten.
func (l *Loader) Load(ctx context.Context, symbol, interval string, lookbackDays int, force bool) ([]model.Bar, error) {
	symbol = strings.ToUpper(symbol)

	if !force {
		bars, ok, err := l.cache.Get(ctx, symbol, interval)
		if err != nil {
			l.log.Warn("cache read failed, refetching",
				logger.String("symbol", symbol),
				logger.Error(err))
		} else if ok {
			l.log.Debug("cache hit",
				logger.String("symbol", symbol),
				logger.String("interval", interval),
				logger.Int("rows", len(bars)))
			return bars, nil
		}
	}

	raw, err := l.provider.GetBars(ctx, symbol, interval, lookbackDays)
	if err != nil {
		if errors.Is(err, provider.ErrEmptyResult) {
			return nil, apperr.New(apperr.KindNoData, "no data returned for %s", symbol)
		}
		return nil, apperr.Wrap(apperr.KindUpstreamFetch, err, "fetching %s %s bars", symbol, interval)
	}

	bars := Normalize(raw)
	if len(bars) == 0 {
		return nil, apperr.New(apperr.KindNoData, "no data returned for %s", symbol)
	}

	if err := l.cache.Put(ctx, symbol, interval, bars); err != nil {
		l.log.Warn("cache write failed",
			logger.String("symbol", symbol),
			logger.Error(err))
	}

	l.log.Info("bars fetched",
		logger.String("symbol", symbol),
		logger.String("interval", interval),
		logger.String("provider", l.provider.Name()),
		logger.Int("rows", len(bars)))

	return bars, nil
}

// Normalize drops bars with missing prices, sorts ascending and keeps the
// last bar of any duplicated timestamp
func Normalize(bars []model.Bar) []model.Bar {
	kept := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if invalid(b.Open) || invalid(b.High) || invalid(b.Low) || invalid(b.Close) {
			continue
		}
		if invalid(b.Volume) {
			b.Volume = 0
		}
		kept = append(kept, b)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Time.Before(kept[j].Time)
	})

	out := kept[:0]
	for _, b := range kept {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func invalid(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Describe summarizes a bar series
func Describe(bars []model.Bar, symbol string) model.DataSummary {
	summary := model.DataSummary{
		Rows:    len(bars),
		Columns: append([]string(nil), model.BarColumns...),
		Symbol:  strings.ToUpper(symbol),
	}
	if len(bars) > 0 {
		summary.Start = bars[0].Time
		summary.End = bars[len(bars)-1].Time
	}
	return summary
}
