package config

import "time"

// Config is the root configuration structure for Tollbooth. It contains
// all configuration sections for the decision server, receipt signing,
// load estimation, storage, rule bootstrapping, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and graceful shutdown behavior.
	Server ServerConfig `yaml:"server"`

	// Signing contains the receipt signing configuration: the shared
	// secret and optional token expiry.
	Signing SigningConfig `yaml:"signing"`

	// Load contains the load estimator configuration: smoothing factor,
	// protection thresholds, and seed rates.
	Load LoadEstimatorConfig `yaml:"load"`

	// Storage contains the receipt and rule persistence configuration.
	Storage StorageConfig `yaml:"storage"`

	// Rules contains the optional rule bootstrap file and watch settings.
	Rules RulesConfig `yaml:"rules"`

	// Sweep contains the scheduled protection relax sweep configuration.
	Sweep SweepConfig `yaml:"sweep"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8484"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SigningConfig contains configuration for the receipt signature engine.
type SigningConfig struct {
	// Secret is the HMAC signing secret. Must be at least 32 bytes.
	// Prefer the TOLLBOOTH_SIGNING_SECRET environment variable over
	// placing the secret in the config file.
	Secret string `yaml:"secret"`

	// TokenTTL is the optional expiry applied to receipt tokens. Zero
	// means tokens never expire. Default: 0
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LoadEstimatorConfig contains configuration for the load estimator.
type LoadEstimatorConfig struct {
	// Alpha is the EWMA smoothing factor in (0, 1). Higher values weight
	// recent observations more heavily. Default: 0.3
	Alpha float64 `yaml:"alpha"`

	// ThresholdLow is the utilization at which writes start requiring
	// approval. Default: 0.6
	ThresholdLow float64 `yaml:"threshold_low"`

	// ThresholdHigh is the utilization at which units become read-only.
	// Default: 0.9
	ThresholdHigh float64 `yaml:"threshold_high"`

	// RelaxThreshold is the utilization below which protection relaxes
	// back to permissive. Must be below ThresholdLow so protection does
	// not flap at the boundary. Default: 0.5
	RelaxThreshold float64 `yaml:"relax_threshold"`

	// SeedLambda is the arrival-rate estimate for units never observed.
	// Default: 1.0
	SeedLambda float64 `yaml:"seed_lambda"`

	// SeedMu is the service-rate estimate for units never observed.
	// Default: 10.0
	SeedMu float64 `yaml:"seed_mu"`
}

// StorageConfig contains configuration for receipt and rule persistence.
type StorageConfig struct {
	// Backend selects the storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains backend-specific settings when Backend is "sqlite".
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite backend settings.
type SQLiteConfig struct {
	// Path is the database file path. Default: "data/tollbooth.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections. Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections. Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging. Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RulesConfig contains configuration for the rule bootstrap file.
type RulesConfig struct {
	// File is the optional YAML file holding the desired rule states.
	// Empty disables file-based rules.
	File string `yaml:"file"`

	// Watch reloads the file on change when enabled. Default: false
	Watch bool `yaml:"watch"`

	// Actor is the subject recorded on receipts for file-driven toggles.
	// Default: "rule-file"
	Actor string `yaml:"actor"`
}

// SweepConfig contains configuration for the scheduled relax sweep, which
// periodically checks whether protected units have cooled down.
type SweepConfig struct {
	// Enabled turns the sweep on. Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression. Default: "* * * * *"
	// (every minute)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text". Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records. Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on. Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "tollbooth"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem label. Default: "core"
	Subsystem string `yaml:"subsystem"`
}
