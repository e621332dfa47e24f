package config

import "time"

// DefaultConfig returns a configuration with all default values applied.
// The signing secret has no default: it must come from the config file or
// the TOLLBOOTH_SIGNING_SECRET environment variable.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for unset fields. It never
// overrides a field that already has a value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8484"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Load.Alpha == 0 {
		cfg.Load.Alpha = 0.3
	}
	if cfg.Load.ThresholdLow == 0 {
		cfg.Load.ThresholdLow = 0.6
	}
	if cfg.Load.ThresholdHigh == 0 {
		cfg.Load.ThresholdHigh = 0.9
	}
	if cfg.Load.RelaxThreshold == 0 {
		cfg.Load.RelaxThreshold = 0.5
	}
	if cfg.Load.SeedLambda == 0 {
		cfg.Load.SeedLambda = 1.0
	}
	if cfg.Load.SeedMu == 0 {
		cfg.Load.SeedMu = 10.0
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/tollbooth.db"
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = 10
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = 5
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = 5 * time.Second
		cfg.Storage.SQLite.WALMode = true
	}

	if cfg.Rules.Actor == "" {
		cfg.Rules.Actor = "rule-file"
	}

	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = "* * * * *"
		cfg.Sweep.Enabled = true
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "tollbooth"
		cfg.Telemetry.Metrics.Enabled = true
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = "core"
	}
}
