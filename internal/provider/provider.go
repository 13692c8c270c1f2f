package provider

import (
	"context"
	"errors"

	"tradingmodels/internal/logger"
	"tradingmodels/pkg/model"
)

// ErrEmptyResult is returned when the source answers but has no bars
var ErrEmptyResult = errors.New("no data available")

// Provider defines the interface for market data sources
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetBars fetches intraday bars for the last lookbackDays days.
	// interval uses the "1m", "5m", ... notation.
	GetBars(ctx context.Context, symbol, interval string, lookbackDays int) ([]model.Bar, error)

	// IsAvailable checks if the provider is usable (has its API key, if any)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from a provider that asked to be retried later
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// FallbackProvider tries the primary source first and the others in order
type FallbackProvider struct {
	providers []Provider
	log       *logger.Logger
}

// NewFallbackProvider creates a new fallback provider from the available providers
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available, log: logger.Nop()}
}

// SetLogger sets the logger that reports fallbacks
func (f *FallbackProvider) SetLogger(log *logger.Logger) {
	if log != nil {
		f.log = log
	}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetBars tries each provider in order until one returns bars.
// An empty result from every provider is reported as ErrEmptyResult.
func (f *FallbackProvider) GetBars(ctx context.Context, symbol, interval string, lookbackDays int) ([]model.Bar, error) {
	if len(f.providers) == 0 {
		return nil, &ProviderError{Provider: f.Name(), Err: errors.New("no available data providers")}
	}

	var lastErr error
	for i, p := range f.providers {
		bars, err := p.GetBars(ctx, symbol, interval, lookbackDays)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err == nil {
			err = &ProviderError{Provider: p.Name(), Err: ErrEmptyResult}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(f.providers)-1 {
			f.log.Warn("market data provider failed, falling back",
				logger.String("provider", p.Name()),
				logger.String("next", f.providers[i+1].Name()),
				logger.Bool("retryable", IsRetryable(err)),
				logger.Error(err),
			)
		}
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}
