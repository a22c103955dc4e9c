// Package config loads and validates cortex runtime configuration from
// YAML files and environment variable overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/darianrosebrook/cortex/internal/capability"
	"github.com/darianrosebrook/cortex/internal/types"
)

// Config is the root configuration for the cortex runtime.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"CORTEX_LOG_"`
	Engine    EngineConfig    `yaml:"engine" envPrefix:"CORTEX_ENGINE_"`
	Promotion PromotionConfig `yaml:"promotion" envPrefix:"CORTEX_PROMOTION_"`
	Breaker   BreakerConfig   `yaml:"breaker" envPrefix:"CORTEX_BREAKER_"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is "text" or "json".
	Format string `yaml:"format" env:"FORMAT"`
}

// EngineConfig controls tree execution pacing.
type EngineConfig struct {
	// TickInterval is the delay between ticks while a tree reports Running.
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`

	// MaxTicks bounds a single run; zero means unbounded.
	MaxTicks int `yaml:"max_ticks" env:"MAX_TICKS"`
}

// UnmarshalYAML accepts Go duration syntax ("25ms") for tick_interval.
// Omitted fields keep their prior values, so defaults survive partial files.
func (e *EngineConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		TickInterval string `yaml:"tick_interval"`
		MaxTicks     *int   `yaml:"max_ticks"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.TickInterval != "" {
		d, err := time.ParseDuration(p.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid engine.tick_interval %q: %w", p.TickInterval, err)
		}
		e.TickInterval = d
	}
	if p.MaxTicks != nil {
		e.MaxTicks = *p.MaxTicks
	}
	return nil
}

// PromotionConfig is the registry-wide default promotion gate.
type PromotionConfig struct {
	MinShadowRuns  int     `yaml:"min_shadow_runs" env:"MIN_SHADOW_RUNS"`
	MinSuccessRate float64 `yaml:"min_success_rate" env:"MIN_SUCCESS_RATE"`
}

// BreakerConfig is the registry-wide default circuit breaker policy.
type BreakerConfig struct {
	FailureRateThreshold float64       `yaml:"failure_rate_threshold" env:"FAILURE_RATE_THRESHOLD"`
	WindowSize           int           `yaml:"window_size" env:"WINDOW_SIZE"`
	Cooldown             time.Duration `yaml:"cooldown" env:"COOLDOWN"`
	MaxProbations        int           `yaml:"max_probations" env:"MAX_PROBATIONS"`
}

// UnmarshalYAML accepts Go duration syntax ("30s") for cooldown. Omitted
// fields keep their prior values, so defaults survive partial files.
func (b *BreakerConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		FailureRateThreshold *float64 `yaml:"failure_rate_threshold"`
		WindowSize           *int     `yaml:"window_size"`
		Cooldown             string   `yaml:"cooldown"`
		MaxProbations        *int     `yaml:"max_probations"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.FailureRateThreshold != nil {
		b.FailureRateThreshold = *p.FailureRateThreshold
	}
	if p.WindowSize != nil {
		b.WindowSize = *p.WindowSize
	}
	if p.Cooldown != "" {
		d, err := time.ParseDuration(p.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid breaker.cooldown %q: %w", p.Cooldown, err)
		}
		b.Cooldown = d
	}
	if p.MaxProbations != nil {
		b.MaxProbations = *p.MaxProbations
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	promotion := capability.DefaultPromotionPolicy()
	breaker := capability.DefaultBreakerPolicy()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			TickInterval: 10 * time.Millisecond,
			MaxTicks:     0,
		},
		Promotion: PromotionConfig{
			MinShadowRuns:  promotion.MinShadowRuns,
			MinSuccessRate: promotion.MinSuccessRate,
		},
		Breaker: BreakerConfig{
			FailureRateThreshold: breaker.FailureRateThreshold,
			WindowSize:           breaker.WindowSize,
			Cooldown:             breaker.Cooldown,
			MaxProbations:        breaker.MaxProbations,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that precedence order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				"read config file "+path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				"parse config file "+path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			"apply environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"logging.level must be one of debug, info, warn, error, got "+c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"logging.format must be text or json, got "+c.Logging.Format)
	}
	if c.Engine.TickInterval <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"engine.tick_interval must be positive")
	}
	if c.Engine.MaxTicks < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"engine.max_ticks must not be negative")
	}
	if err := c.PromotionPolicy().Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "promotion", err)
	}
	if err := c.BreakerPolicy().Validate(); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "breaker", err)
	}
	return nil
}

// PromotionPolicy converts the configured promotion defaults to a policy.
func (c *Config) PromotionPolicy() capability.PromotionPolicy {
	return capability.PromotionPolicy{
		MinShadowRuns:  c.Promotion.MinShadowRuns,
		MinSuccessRate: c.Promotion.MinSuccessRate,
	}
}

// BreakerPolicy converts the configured breaker defaults to a policy.
func (c *Config) BreakerPolicy() capability.BreakerPolicy {
	return capability.BreakerPolicy{
		FailureRateThreshold: c.Breaker.FailureRateThreshold,
		WindowSize:           c.Breaker.WindowSize,
		Cooldown:             c.Breaker.Cooldown,
		MaxProbations:        c.Breaker.MaxProbations,
	}
}

// Logger builds a slog.Logger from the logging configuration, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// String renders the effective configuration for diagnostics.
func (c *Config) String() string {
	return fmt.Sprintf("logging=%s/%s engine=%s/%d promotion=%d/%.2f breaker=%.2f/%d/%s/%d",
		c.Logging.Level, c.Logging.Format,
		c.Engine.TickInterval, c.Engine.MaxTicks,
		c.Promotion.MinShadowRuns, c.Promotion.MinSuccessRate,
		c.Breaker.FailureRateThreshold, c.Breaker.WindowSize, c.Breaker.Cooldown, c.Breaker.MaxProbations)
}
