// Package config loads the daemon's optional TOML configuration file via
// viper, grounded on loykin-provisr/internal/config.go's
// SetConfigFile/SetConfigType/ReadInConfig/Unmarshal shape. mcproc has no
// per-process config (processes are started over RPC, not declared
// ahead of time), so this is limited to the daemon-wide tunables spec.md
// leaves to "an external collaborator": retention, log size budget,
// root overrides, and the metrics listener.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon's fully-defaulted configuration.
type Config struct {
	// RetentionDays bounds how long a process's on-disk log file is kept
	// by the periodic sweep (spec.md §9 Open Question (a)).
	RetentionDays int `mapstructure:"retention_days"`

	// MaxLogBytes bounds the size of any individual log file under LogDir;
	// a file exceeding it is eligible for deletion by the sweep, in
	// addition to the age-based RetentionDays cutoff (spec.md §4.2).
	MaxLogBytes int64 `mapstructure:"max_log_bytes"`

	// RuntimeRoot/StateRoot override internal/common.Paths' XDG defaults.
	RuntimeRoot string `mapstructure:"runtime_root"`
	StateRoot   string `mapstructure:"state_root"`

	// MetricsListenAddr, when non-empty, starts an opt-in localhost
	// Prometheus listener (spec.md's Non-goals exclude remote access by
	// default, not a local opt-in).
	MetricsListenAddr string `mapstructure:"metrics_listen_addr"`

	// Env/EnvFiles/UseOSEnv describe the daemon-wide base environment
	// every Start RPC's command runs with, merged under per-request
	// overrides (internal/env.Env.Merge).
	Env      []string `mapstructure:"env"`
	EnvFiles []string `mapstructure:"env_files"`
	UseOSEnv bool     `mapstructure:"use_os_env"`

	// LogMaxSizeMB/LogMaxBackups/LogMaxAgeDays/LogCompress configure the
	// daemon's own diagnostic log rotation (internal/logger.Config).
	LogMaxSizeMB  int  `mapstructure:"log_max_size_mb"`
	LogMaxBackups int  `mapstructure:"log_max_backups"`
	LogMaxAgeDays int  `mapstructure:"log_max_age_days"`
	LogCompress   bool `mapstructure:"log_compress"`
}

// Defaults matches spec.md §9(a) for RetentionDays and
// internal/loghub.DefaultMaxFileBytes for MaxLogBytes.
func Defaults() Config {
	return Config{
		RetentionDays: 7,
		MaxLogBytes:   50 * 1024 * 1024, // spec.md §4.2: 50 MiB per-file default
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 7,
	}
}

// Load reads path (TOML) over Defaults(). An empty path returns Defaults()
// unchanged — the daemon runs with no config file present.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	bindDefaults(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("retention_days", cfg.RetentionDays)
	v.SetDefault("max_log_bytes", cfg.MaxLogBytes)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("log_max_age_days", cfg.LogMaxAgeDays)
}

// RetentionDuration converts RetentionDays to a time.Duration for
// internal/loghub.RetentionPolicy.
func (c Config) RetentionDuration() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
