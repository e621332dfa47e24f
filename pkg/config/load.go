package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention TOLLBOOTH_SECTION_FIELD (e.g. TOLLBOOTH_SERVER_LISTEN_ADDRESS)
// and always take precedence over file values.
//
// The loading sequence is: YAML, defaults, environment overrides,
// validation.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies TOLLBOOTH_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("TOLLBOOTH_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("TOLLBOOTH_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("TOLLBOOTH_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("TOLLBOOTH_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	if val := os.Getenv("TOLLBOOTH_SIGNING_SECRET"); val != "" {
		cfg.Signing.Secret = val
	}
	if val := os.Getenv("TOLLBOOTH_SIGNING_TOKEN_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Signing.TokenTTL = d
		}
	}

	if val := os.Getenv("TOLLBOOTH_LOAD_ALPHA"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Load.Alpha = f
		}
	}
	if val := os.Getenv("TOLLBOOTH_LOAD_THRESHOLD_LOW"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Load.ThresholdLow = f
		}
	}
	if val := os.Getenv("TOLLBOOTH_LOAD_THRESHOLD_HIGH"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Load.ThresholdHigh = f
		}
	}
	if val := os.Getenv("TOLLBOOTH_LOAD_RELAX_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Load.RelaxThreshold = f
		}
	}

	if val := os.Getenv("TOLLBOOTH_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("TOLLBOOTH_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}

	if val := os.Getenv("TOLLBOOTH_RULES_FILE"); val != "" {
		cfg.Rules.File = val
	}
	if val := os.Getenv("TOLLBOOTH_RULES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Rules.Watch = b
		}
	}

	if val := os.Getenv("TOLLBOOTH_SWEEP_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Sweep.Enabled = b
		}
	}
	if val := os.Getenv("TOLLBOOTH_SWEEP_SCHEDULE"); val != "" {
		cfg.Sweep.Schedule = val
	}

	if val := os.Getenv("TOLLBOOTH_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("TOLLBOOTH_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("TOLLBOOTH_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
