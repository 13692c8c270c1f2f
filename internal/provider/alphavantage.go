package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"tradingmodels/internal/ratelimit"
	"tradingmodels/pkg/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// alphaVantageIntervals maps our interval notation to Alpha Vantage's
var alphaVantageIntervals = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"60m": "60min",
}

// AlphaVantageProvider implements the Provider interface for the Alpha Vantage API
type AlphaVantageProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
	loc       *time.Location
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, rateLimitPerMin int, timeout time.Duration) *AlphaVantageProvider {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &AlphaVantageProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		limiter:   ratelimit.NewLimiter("alphavantage", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
		baseURL:   alphaVantageBaseURL,
		loc:       loc,
	}
}

// SetBaseURL points the provider at another query endpoint
func (p *AlphaVantageProvider) SetBaseURL(u string) {
	p.baseURL = u
}

// Name returns the provider name
func (p *AlphaVantageProvider) Name() string {
	return "alphavantage"
}

// IsAvailable checks if the provider has an API key
func (p *AlphaVantageProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *AlphaVantageProvider) RateLimit() int {
	return p.rateLimit
}

// alphaVantageResponse keeps the time series raw; its key depends on the interval
type alphaVantageResponse map[string]json.RawMessage

// GetBars fetches intraday bars and keeps the last lookbackDays calendar days
func (p *AlphaVantageProvider) GetBars(ctx context.Context, symbol, interval string, lookbackDays int) ([]model.Bar, error) {
	avInterval, ok := alphaVantageIntervals[interval]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("interval %s not supported", interval)}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", symbol)
	q.Set("interval", avInterval)
	q.Set("outputsize", "full")
	q.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var data alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	if note, ok := data["Note"]; ok {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited: %s", note), Retryable: true}
	}
	if msg, ok := data["Error Message"]; ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", msg)}
	}

	p.limiter.ResetBackoff()

	raw, ok := data[fmt.Sprintf("Time Series (%s)", avInterval)]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrEmptyResult}
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding time series: %w", err)}
	}

	return p.parseTimeSeries(series, lookbackDays), nil
}

// parseTimeSeries converts the time series to bars within the lookback window
func (p *AlphaVantageProvider) parseTimeSeries(series map[string]map[string]string, lookbackDays int) []model.Bar {
	var latest time.Time
	bars := make([]model.Bar, 0, len(series))
	for timeStr, values := range series {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", timeStr, p.loc)
		if err != nil {
			continue
		}

		open, err1 := strconv.ParseFloat(values["1. open"], 64)
		high, err2 := strconv.ParseFloat(values["2. high"], 64)
		low, err3 := strconv.ParseFloat(values["3. low"], 64)
		closePrice, err4 := strconv.ParseFloat(values["4. close"], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(values["5. volume"], 64)

		if t.After(latest) {
			latest = t
		}
		bars = append(bars, model.Bar{
			Time:   t.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	cutoff := latest.AddDate(0, 0, -lookbackDays)
	kept := bars[:0]
	for _, b := range bars {
		if b.Time.After(cutoff) {
			kept = append(kept, b)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Time.Before(kept[j].Time)
	})

	return kept
}
