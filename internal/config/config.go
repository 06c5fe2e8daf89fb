// Package config loads coinshaft's structured configuration via viper:
// defaults, a searched config file, and environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"coinshaft/internal/profiling"
)

// Config is the root configuration tree.
type Config struct {
	Mining     MiningConfig      `mapstructure:"mining"`
	Pools      PoolsConfig       `mapstructure:"pools"`
	Monitor    MonitorConfig     `mapstructure:"monitor"`
	Reward     RewardConfig      `mapstructure:"reward"`
	Log        LogConfig         `mapstructure:"log"`
	API        APIConfig         `mapstructure:"api"`
	Profiling  profiling.Config  `mapstructure:"profiling"`
}

// APIConfig controls the read-only status HTTP surface.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// MiningConfig carries the coordinator/plugin knobs named in the
// configuration surface.
type MiningConfig struct {
	MaxCPUPercentage    float64 `mapstructure:"max_cpu_percentage"`
	BackgroundPriority  bool    `mapstructure:"background_priority"`
	ThreadCount         int     `mapstructure:"thread_count"`
	PoolURL             string  `mapstructure:"pool_url"`
	WorkerName          string  `mapstructure:"worker_name"`
	GPUEnabled          bool    `mapstructure:"gpu_enabled"`
	MinHashrate         float64 `mapstructure:"min_hashrate"`
	AutoPauseOnLoad     bool    `mapstructure:"auto_pause_on_load"`
	ThermalThrottleTemp int     `mapstructure:"thermal_throttle_temp"` // 0 = unset
}

// PoolsConfig bounds the pool manager's registry and health checks.
type PoolsConfig struct {
	MaxPools          int           `mapstructure:"max_pools"`
	MinAcceptanceRate float64       `mapstructure:"min_acceptance_rate"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// MonitorConfig sizes the hash-rate monitor's sample window and alerting.
type MonitorConfig struct {
	MaxSamples         int           `mapstructure:"max_samples"`
	SampleInterval     time.Duration `mapstructure:"sample_interval"`
	MinSamplesForStats int           `mapstructure:"min_samples_for_stats"`
	AlertThreshold     float64       `mapstructure:"alert_threshold"`
}

// RewardConfig parameterizes the reward distributor's policy.
type RewardConfig struct {
	Method                string  `mapstructure:"method"`
	PPLNSWindow           int     `mapstructure:"pplns_window"`
	MaturityConfirmations uint64  `mapstructure:"maturity_confirmations"`
	MinPayoutSats         uint64  `mapstructure:"min_payout_sats"`
	FeePercent            float64 `mapstructure:"fee_percent"`
	ScoreDecay            float64 `mapstructure:"score_decay"`
}

// LogConfig configures the logging package.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from configPath (or the default search path if
// empty) layered under defaults, then environment overrides prefixed
// COINSHAFT_.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/coinshaft")
	}

	v.SetEnvPrefix("COINSHAFT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the cross-field invariants the plugin and subsystems
// assume hold on a loaded config.
func (c Config) Validate() error {
	if c.Mining.MaxCPUPercentage < 1 || c.Mining.MaxCPUPercentage > 100 {
		return fmt.Errorf("mining.max_cpu_percentage must be in [1, 100], got %v", c.Mining.MaxCPUPercentage)
	}
	if c.Pools.MaxPools < 1 {
		return fmt.Errorf("pools.max_pools must be >= 1, got %d", c.Pools.MaxPools)
	}
	if c.Monitor.MaxSamples < 1 {
		return fmt.Errorf("monitor.max_samples must be >= 1, got %d", c.Monitor.MaxSamples)
	}
	switch c.Reward.Method {
	case "pps", "pplns", "proportional", "score", "solo":
	default:
		return fmt.Errorf("reward.method must be one of pps/pplns/proportional/score/solo, got %q", c.Reward.Method)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.max_cpu_percentage", 80.0)
	v.SetDefault("mining.background_priority", false)
	v.SetDefault("mining.thread_count", 0)
	v.SetDefault("mining.worker_name", "worker1")
	v.SetDefault("mining.gpu_enabled", false)
	v.SetDefault("mining.min_hashrate", 0.0)
	v.SetDefault("mining.auto_pause_on_load", false)
	v.SetDefault("mining.thermal_throttle_temp", 0)

	v.SetDefault("pools.max_pools", 10)
	v.SetDefault("pools.min_acceptance_rate", 0.95)
	v.SetDefault("pools.health_check_period", "30s")

	v.SetDefault("monitor.max_samples", 60)
	v.SetDefault("monitor.sample_interval", "1s")
	v.SetDefault("monitor.min_samples_for_stats", 5)
	v.SetDefault("monitor.alert_threshold", 0.2)

	v.SetDefault("reward.method", "pplns")
	v.SetDefault("reward.pplns_window", 10000)
	v.SetDefault("reward.maturity_confirmations", 100)
	v.SetDefault("reward.min_payout_sats", 10_000_000)
	v.SetDefault("reward.fee_percent", 1.0)
	v.SetDefault("reward.score_decay", 0.9995)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "127.0.0.1:8080")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")
}
