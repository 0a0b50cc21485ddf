// Package config loads agentsim settings from an optional YAML file and
// AGENTSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key. Nested keys use "_":
// simulation.speed is read from AGENTSIM_SIMULATION_SPEED.
const EnvPrefix = "AGENTSIM"

type SimulationConfig struct {
	Speed            float64       `mapstructure:"speed"`
	MinStepDelay     time.Duration `mapstructure:"min_step_delay"`
	MaxStepDelay     time.Duration `mapstructure:"max_step_delay"`
	EventLogCapacity int           `mapstructure:"event_log_capacity"`
	ExclusiveAgents  bool          `mapstructure:"exclusive_agents"`
	// Seed makes generated contributors reproducible. Zero means random.
	Seed uint64 `mapstructure:"seed"`
	// LockChecks turns on go-deadlock lock-order and wait-time reports.
	LockChecks bool `mapstructure:"lock_checks"`
}

type DashboardConfig struct {
	EventBuffer int `mapstructure:"event_buffer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full application configuration.
type Config struct {
	Simulation    SimulationConfig `mapstructure:"simulation"`
	Dashboard     DashboardConfig  `mapstructure:"dashboard"`
	Workers       int              `mapstructure:"workers"`
	Log           LogConfig        `mapstructure:"log"`
	WorkflowFiles []string         `mapstructure:"workflow_files"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.speed", 1.0)
	v.SetDefault("simulation.min_step_delay", 500*time.Millisecond)
	v.SetDefault("simulation.max_step_delay", 3*time.Second)
	v.SetDefault("simulation.event_log_capacity", 1000)
	v.SetDefault("simulation.exclusive_agents", false)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.lock_checks", false)
	v.SetDefault("dashboard.event_buffer", 100)
	v.SetDefault("workers", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("workflow_files", []string{})
}

// Load reads path (if non-empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	s := c.Simulation
	if s.Speed < 0 {
		bad("simulation.speed must not be negative, got %v", s.Speed)
	}
	if s.MinStepDelay < 0 || s.MaxStepDelay < 0 {
		bad("step delays must not be negative, got %v..%v", s.MinStepDelay, s.MaxStepDelay)
	}
	if s.MaxStepDelay < s.MinStepDelay {
		bad("simulation.max_step_delay %v is below min_step_delay %v", s.MaxStepDelay, s.MinStepDelay)
	}
	if s.EventLogCapacity <= 0 {
		bad("simulation.event_log_capacity must be positive, got %d", s.EventLogCapacity)
	}
	if c.Dashboard.EventBuffer <= 0 {
		bad("dashboard.event_buffer must be positive, got %d", c.Dashboard.EventBuffer)
	}
	if c.Workers <= 0 {
		bad("workers must be positive, got %d", c.Workers)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("log.format must be text or json, got %q", c.Log.Format)
	}
	return errors.Join(errs...)
}
