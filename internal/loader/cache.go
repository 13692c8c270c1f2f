package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/redis/go-redis/v9"

	"tradingmodels/pkg/model"
)

// Cache stores one bar series per (symbol, interval)
type Cache interface {
	// Get returns the cached series; ok is false on a miss
	Get(ctx context.Context, symbol, interval string) (bars []model.Bar, ok bool, err error)
	// Put replaces the cached series
	Put(ctx context.Context, symbol, interval string, bars []model.Bar) error
}

// barRow is the on-disk layout of a bar
type barRow struct {
	Timestamp int64   `parquet:"timestamp"` // unix milliseconds, UTC
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

func toRows(bars []model.Bar) []barRow {
	rows := make([]barRow, len(bars))
	for i, b := range bars {
		rows[i] = barRow{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return rows
}

func fromRows(rows []barRow) []model.Bar {
	bars := make([]model.Bar, len(rows))
	for i, r := range rows {
		bars[i] = model.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return bars
}

// FileCache keeps each series in a parquet file under dir
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache rooted at dir
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Path returns the cache file of a series
func (c *FileCache) Path(symbol, interval string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.parquet", strings.ToUpper(symbol), interval))
}

// Get reads the cached series
func (c *FileCache) Get(ctx context.Context, symbol, interval string) ([]model.Bar, bool, error) {
	path := c.Path(symbol, interval)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	rows, err := parquet.ReadFile[barRow](path)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return fromRows(rows), true, nil
}

// Put overwrites the cached series
func (c *FileCache) Put(ctx context.Context, symbol, interval string, bars []model.Bar) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := c.Path(symbol, interval)
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, toRows(bars)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// redisClient is the subset of *redis.Client used by RedisCache
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisCache keeps each series as a JSON value with a TTL
type RedisCache struct {
	cli redisClient
	ttl time.Duration
}

// RedisConfig holds the redis connection used by RedisCache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache creates a redis-backed cache
func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &RedisCache{cli: rdb, ttl: cfg.TTL}
}

func redisKey(symbol, interval string) string {
	return fmt.Sprintf("day_trading:bars:%s:%s", strings.ToUpper(symbol), interval)
}

// Get reads the cached series
func (c *RedisCache) Get(ctx context.Context, symbol, interval string) ([]model.Bar, bool, error) {
	b, err := c.cli.Get(ctx, redisKey(symbol, interval)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var bars []model.Bar
	if err := json.Unmarshal(b, &bars); err != nil {
		return nil, false, fmt.Errorf("decoding cached bars: %w", err)
	}
	return bars, true, nil
}

// Put overwrites the cached series
func (c *RedisCache) Put(ctx context.Context, symbol, interval string, bars []model.Bar) error {
	b, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, redisKey(symbol, interval), b, c.ttl).Err()
}

// Close releases the redis connection
func (c *RedisCache) Close() error {
	return c.cli.Close()
}
