package config

import (
	"fmt"
	"net"
)

// minSecretLength matches the signature engine's weak-secret floor.
const minSecretLength = 32

// Validate checks the configuration for errors. It returns the first
// problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not a valid host:port: %w",
			cfg.Server.ListenAddress, err)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if cfg.Signing.Secret == "" {
		return fmt.Errorf("signing.secret is required (set TOLLBOOTH_SIGNING_SECRET)")
	}
	if len(cfg.Signing.Secret) < minSecretLength {
		return fmt.Errorf("signing.secret must be at least %d bytes, got %d",
			minSecretLength, len(cfg.Signing.Secret))
	}
	if cfg.Signing.TokenTTL < 0 {
		return fmt.Errorf("signing.token_ttl cannot be negative")
	}

	if cfg.Load.Alpha <= 0 || cfg.Load.Alpha >= 1 {
		return fmt.Errorf("load.alpha must be in (0, 1), got %v", cfg.Load.Alpha)
	}
	if cfg.Load.RelaxThreshold <= 0 {
		return fmt.Errorf("load.relax_threshold must be positive, got %v", cfg.Load.RelaxThreshold)
	}
	if cfg.Load.RelaxThreshold >= cfg.Load.ThresholdLow {
		return fmt.Errorf("load.relax_threshold (%v) must be below load.threshold_low (%v)",
			cfg.Load.RelaxThreshold, cfg.Load.ThresholdLow)
	}
	if cfg.Load.ThresholdLow >= cfg.Load.ThresholdHigh {
		return fmt.Errorf("load.threshold_low (%v) must be below load.threshold_high (%v)",
			cfg.Load.ThresholdLow, cfg.Load.ThresholdHigh)
	}
	if cfg.Load.ThresholdHigh >= 1 {
		return fmt.Errorf("load.threshold_high must be below 1, got %v", cfg.Load.ThresholdHigh)
	}
	if cfg.Load.SeedLambda < 0 {
		return fmt.Errorf("load.seed_lambda cannot be negative, got %v", cfg.Load.SeedLambda)
	}
	if cfg.Load.SeedMu <= 0 {
		return fmt.Errorf("load.seed_mu must be positive, got %v", cfg.Load.SeedMu)
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be \"sqlite\" or \"memory\", got %q",
			cfg.Storage.Backend)
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug, info, warn, error; got %q",
			cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q",
			cfg.Telemetry.Logging.Format)
	}

	return nil
}
