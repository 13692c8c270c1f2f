package daytrading

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tradingmodels/internal/apperr"
)

// Config fixes every knob of one day-trading pipeline run.
// It is a value type: overrides return a new Config.
type Config struct {
	Symbol          string        `json:"symbol" yaml:"symbol"`
	Interval        string        `json:"interval" yaml:"interval"`
	LookbackDays    int           `json:"lookback_days" yaml:"lookback_days"`
	FeatureWindows  []int         `json:"feature_windows" yaml:"feature_windows"`
	RSIWindow       int           `json:"rsi_window" yaml:"rsi_window"`
	ValidationSize  float64       `json:"validation_size" yaml:"validation_size"`
	Epochs          int           `json:"epochs" yaml:"epochs"`
	Threshold       float64       `json:"threshold" yaml:"threshold"`
	RandomState     int64         `json:"random_state" yaml:"random_state"`
	ModelFilename   string        `json:"model_filename" yaml:"model_filename"`
	MetricsFilename string        `json:"metrics_filename" yaml:"metrics_filename"`
	HistoryFilename string        `json:"history_filename" yaml:"history_filename"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	MaxStreamPoints int           `json:"max_stream_points" yaml:"max_stream_points"`
}

// SupportedIntervals are the bar sizes the market data providers serve
var SupportedIntervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m"}

// DefaultConfig returns the default day-trading configuration
func DefaultConfig() Config {
	return Config{
		Symbol:          "AAPL",
		Interval:        "1m",
		LookbackDays:    7,
		FeatureWindows:  []int{5, 15, 30, 60},
		RSIWindow:       14,
		ValidationSize:  0.2,
		Epochs:          12,
		Threshold:       0.0005,
		RandomState:     42,
		ModelFilename:   "day_trading_sgd.json",
		MetricsFilename: "metrics.json",
		HistoryFilename: "training_history.json",
		RefreshInterval: time.Minute,
		MaxStreamPoints: 300,
	}
}

// Clone returns a deep copy (the windows slice is not shared)
func (c Config) Clone() Config {
	out := c
	out.FeatureWindows = append([]int(nil), c.FeatureWindows...)
	return out
}

// MaxWindow returns the largest feature window
func (c Config) MaxWindow() int {
	max := 0
	for _, w := range c.FeatureWindows {
		if w > max {
			max = w
		}
	}
	return max
}

// Validate checks the configuration, returning an invalid_config error
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if !isSupportedInterval(c.Interval) {
		problems = append(problems, fmt.Sprintf("interval %q not supported (use one of %s)", c.Interval, strings.Join(SupportedIntervals, ", ")))
	}
	if c.LookbackDays < 1 {
		problems = append(problems, "lookback_days must be at least 1")
	}
	if len(c.FeatureWindows) == 0 {
		problems = append(problems, "feature_windows cannot be empty")
	}
	seen := make(map[int]bool, len(c.FeatureWindows))
	for _, w := range c.FeatureWindows {
		if w < 1 {
			problems = append(problems, fmt.Sprintf("feature window %d must be positive", w))
		}
		if seen[w] {
			problems = append(problems, fmt.Sprintf("feature window %d listed twice", w))
		}
		seen[w] = true
	}
	if c.RSIWindow < 1 {
		problems = append(problems, "rsi_window must be at least 1")
	}
	if c.ValidationSize <= 0 || c.ValidationSize >= 1 {
		problems = append(problems, "validation_size must be between 0 and 1 (exclusive)")
	}
	if c.Epochs < 1 {
		problems = append(problems, "epochs must be at least 1")
	}
	if c.MaxStreamPoints < 1 {
		problems = append(problems, "max_stream_points must be at least 1")
	}
	if c.RefreshInterval <= 0 {
		problems = append(problems, "refresh_interval must be positive")
	}
	if c.ModelFilename == "" || c.MetricsFilename == "" || c.HistoryFilename == "" {
		problems = append(problems, "artifact file names cannot be empty")
	}

	if len(problems) > 0 {
		return apperr.New(apperr.KindInvalidConfig, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isSupportedInterval(interval string) bool {
	for _, s := range SupportedIntervals {
		if s == interval {
			return true
		}
	}
	return false
}

// setter applies one external override to a config
type setter func(c *Config, v interface{}) error

// overrideSetters is the allow-list of externally settable fields
var overrideSetters = map[string]setter{
	"symbol": func(c *Config, v interface{}) error {
		s, err := toString(v)
		c.Symbol = strings.ToUpper(strings.TrimSpace(s))
		return err
	},
	"interval": func(c *Config, v interface{}) error {
		s, err := toString(v)
		c.Interval = s
		return err
	},
	"lookback_days": func(c *Config, v interface{}) error {
		n, err := toInt(v)
		c.LookbackDays = n
		return err
	},
	"feature_windows": func(c *Config, v interface{}) error {
		ws, err := toInts(v)
		c.FeatureWindows = ws
		return err
	},
	"rsi_window": func(c *Config, v interface{}) error {
		n, err := toInt(v)
		c.RSIWindow = n
		return err
	},
	"validation_size": func(c *Config, v interface{}) error {
		f, err := toFloat(v)
		c.ValidationSize = f
		return err
	},
	"epochs": func(c *Config, v interface{}) error {
		n, err := toInt(v)
		c.Epochs = n
		return err
	},
	"threshold": func(c *Config, v interface{}) error {
		f, err := toFloat(v)
		c.Threshold = f
		return err
	},
	"random_state": func(c *Config, v interface{}) error {
		n, err := toInt(v)
		c.RandomState = int64(n)
		return err
	},
	"max_stream_points": func(c *Config, v interface{}) error {
		n, err := toInt(v)
		c.MaxStreamPoints = n
		return err
	},
}

// OverrideFields lists the externally settable field names in stable order
func OverrideFields() []string {
	names := make([]string, 0, len(overrideSetters))
	for name := range overrideSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithOverrides returns a new validated Config with the given fields replaced.
// Unknown field names are rejected.
func (c Config) WithOverrides(overrides map[string]interface{}) (Config, error) {
	out := c.Clone()
	for _, name := range sortedKeys(overrides) {
		set, ok := overrideSetters[name]
		if !ok {
			return c, apperr.New(apperr.KindInvalidConfig, "unknown configuration field %q (allowed: %s)", name, strings.Join(OverrideFields(), ", "))
		}
		if err := set(&out, overrides[name]); err != nil {
			return c, apperr.Wrap(apperr.KindInvalidConfig, err, "field %q", name)
		}
	}
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toInts(v interface{}) ([]int, error) {
	switch xs := v.(type) {
	case []int:
		return append([]int(nil), xs...), nil
	case []interface{}:
		out := make([]int, 0, len(xs))
		for _, x := range xs {
			n, err := toInt(x)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of integers, got %T", v)
	}
}
