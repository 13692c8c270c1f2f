package daytrading

import (
	"errors"
	"testing"

	"tradingmodels/internal/apperr"
)

func TestDefaultLookbackFitsMinuteHistory(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval == "1m" && cfg.LookbackDays > 7 {
		t.Errorf("default lookback %d exceeds the 7 days of 1m bars upstream serves", cfg.LookbackDays)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty symbol", func(c *Config) { c.Symbol = " " }},
		{"bad interval", func(c *Config) { c.Interval = "7m" }},
		{"zero window", func(c *Config) { c.FeatureWindows = []int{5, 0} }},
		{"duplicate window", func(c *Config) { c.FeatureWindows = []int{5, 5} }},
		{"no windows", func(c *Config) { c.FeatureWindows = nil }},
		{"rsi window", func(c *Config) { c.RSIWindow = 0 }},
		{"validation too large", func(c *Config) { c.ValidationSize = 1 }},
		{"validation zero", func(c *Config) { c.ValidationSize = 0 }},
		{"epochs", func(c *Config) { c.Epochs = 0 }},
		{"lookback", func(c *Config) { c.LookbackDays = 0 }},
		{"stream points", func(c *Config) { c.MaxStreamPoints = 0 }},
		{"model file", func(c *Config) { c.ModelFilename = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperr.ErrInvalidConfig) {
				t.Errorf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestWithOverridesReturnsNewValue(t *testing.T) {
	base := DefaultConfig()
	got, err := base.WithOverrides(map[string]interface{}{
		"symbol":          "msft",
		"epochs":          float64(3),
		"feature_windows": []interface{}{float64(5), float64(10)},
		"validation_size": 0.25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Symbol != "MSFT" || got.Epochs != 3 || got.ValidationSize != 0.25 {
		t.Errorf("overrides not applied: %+v", got)
	}
	if len(got.FeatureWindows) != 2 || got.FeatureWindows[1] != 10 {
		t.Errorf("unexpected windows %v", got.FeatureWindows)
	}
	if base.Symbol != "AAPL" || base.Epochs != 12 || len(base.FeatureWindows) != 4 {
		t.Errorf("base config was mutated: %+v", base)
	}
}

func TestWithOverridesRejectsUnknownAndInvalid(t *testing.T) {
	base := DefaultConfig()

	if _, err := base.WithOverrides(map[string]interface{}{"model_filename": "x"}); !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Errorf("expected invalid config for non allow-listed field, got %v", err)
	}
	if _, err := base.WithOverrides(map[string]interface{}{"epochs": "many"}); !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Errorf("expected invalid config for wrong type, got %v", err)
	}
	if _, err := base.WithOverrides(map[string]interface{}{"epochs": 1.5}); err == nil {
		t.Error("expected error for fractional epochs")
	}
	if _, err := base.WithOverrides(map[string]interface{}{"feature_windows": []int{-1}}); !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Errorf("expected invalid config for negative window, got %v", err)
	}
}

func TestMaxWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeatureWindows = []int{15, 60, 5}
	if cfg.MaxWindow() != 60 {
		t.Errorf("expected 60, got %d", cfg.MaxWindow())
	}
}
