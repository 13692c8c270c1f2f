package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/provider"
	"tradingmodels/pkg/model"
)

type fakeProvider struct {
	bars  []model.Bar
	err   error
	calls int
}

func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) IsAvailable() bool { return true }
func (f *fakeProvider) RateLimit() int    { return 60 }
func (f *fakeProvider) GetBars(ctx context.Context, symbol, interval string, lookbackDays int) ([]model.Bar, error) {
	f.calls++
	return f.bars, f.err
}

func makeBars(n int) []model.Bar {
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price + 0.25,
			Volume: 1000,
		}
	}
	return bars
}

func TestLoadFetchesAndCaches(t *testing.T) {
	fp := &fakeProvider{bars: makeBars(5)}
	cache := NewFileCache(t.TempDir())
	l := New(fp, cache, nil)

	bars, err := l.Load(context.Background(), "aapl", "1m", 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("expected 5 bars, got %d", len(bars))
	}
	if _, err := os.Stat(cache.Path("AAPL", "1m")); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}

	// second load is served from the cache
	cached, err := l.Load(context.Background(), "AAPL", "1m", 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", fp.calls)
	}
	for i := range bars {
		if !cached[i].Time.Equal(bars[i].Time) || cached[i].Close != bars[i].Close {
			t.Fatalf("cached bar %d differs: %+v vs %+v", i, cached[i], bars[i])
		}
	}
}

func TestLoadForceRefetches(t *testing.T) {
	fp := &fakeProvider{bars: makeBars(3)}
	l := New(fp, NewFileCache(t.TempDir()), nil)

	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), "AAPL", "5m", 1, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fp.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", fp.calls)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		fp   *fakeProvider
		want error
	}{
		{"empty", &fakeProvider{}, apperr.ErrNoData},
		{"empty result", &fakeProvider{err: &provider.ProviderError{Provider: "fake", Err: provider.ErrEmptyResult}}, apperr.ErrNoData},
		{"upstream", &fakeProvider{err: &provider.ProviderError{Provider: "fake", Err: errors.New("status 500")}}, apperr.ErrUpstreamFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.fp, NewFileCache(t.TempDir()), nil)
			_, err := l.Load(context.Background(), "ZZZZ", "1m", 1, true)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	bars := makeBars(4)
	dup := bars[1]
	dup.Close = 999
	input := []model.Bar{bars[3], bars[1], bars[0], dup, bars[2]}
	input = append(input, model.Bar{Time: bars[3].Time.Add(time.Minute), Open: math.NaN(), High: 1, Low: 1, Close: 1})

	out := Normalize(input)
	if len(out) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if !out[i-1].Time.Before(out[i].Time) {
			t.Fatalf("bars not strictly ascending at %d", i)
		}
	}
	if out[1].Close != 999 {
		t.Errorf("expected last duplicate kept, got close %v", out[1].Close)
	}
}

func TestDescribe(t *testing.T) {
	bars := makeBars(3)
	s := Describe(bars, "msft")
	if s.Rows != 3 || s.Symbol != "MSFT" {
		t.Errorf("unexpected summary %+v", s)
	}
	if !s.Start.Equal(bars[0].Time) || !s.End.Equal(bars[2].Time) {
		t.Errorf("unexpected range %v - %v", s.Start, s.End)
	}
	if len(s.Columns) != len(model.BarColumns) {
		t.Errorf("expected %d columns, got %d", len(model.BarColumns), len(s.Columns))
	}

	if empty := Describe(nil, "x"); empty.Rows != 0 || !empty.Start.IsZero() {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("aapl", "1m"); got != "day_trading:bars:AAPL:1m" {
		t.Errorf("unexpected key %s", got)
	}
}

// memRedis stores values in a map and answers like a redis client
type memRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemRedis() *memRedis {
	return &memRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	default:
		return redis.NewStatusResult("", fmt.Errorf("unexpected value type %T", value))
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Close() error { return nil }

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := newMemRedis()
	c := &RedisCache{cli: mem, ttl: time.Hour}

	if _, ok, err := c.Get(ctx, "AAPL", "1m"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	bars := makeBars(5)
	if err := c.Put(ctx, "aapl", "1m", bars); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if mem.ttls["day_trading:bars:AAPL:1m"] != time.Hour {
		t.Errorf("expected ttl to be applied, got %v", mem.ttls)
	}

	got, ok, err := c.Get(ctx, "AAPL", "1m")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != len(bars) {
		t.Fatalf("expected %d bars, got %d", len(bars), len(got))
	}
	for i := range bars {
		if !got[i].Time.Equal(bars[i].Time) || got[i].Close != bars[i].Close || got[i].Volume != bars[i].Volume {
			t.Fatalf("bar %d: got %+v, want %+v", i, got[i], bars[i])
		}
	}
}

func TestRedisCacheErrors(t *testing.T) {
	ctx := context.Background()

	mem := newMemRedis()
	mem.values[redisKey("AAPL", "1m")] = "not json"
	c := &RedisCache{cli: mem}
	if _, _, err := c.Get(ctx, "AAPL", "1m"); err == nil {
		t.Error("expected decode error for corrupt value")
	}

	down := errors.New("connection refused")
	mem = newMemRedis()
	mem.getErr = down
	c = &RedisCache{cli: mem}
	if _, ok, err := c.Get(ctx, "AAPL", "1m"); ok || !errors.Is(err, down) {
		t.Errorf("expected connection error, got ok=%v err=%v", ok, err)
	}
}
