package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const validSecret = "dev-secret-dev-secret-dev-secret-ok!"

// writeConfigFile writes YAML content to a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
signing:
  secret: "`+validSecret+`"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:8484" {
		t.Errorf("ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Load.Alpha != 0.3 {
		t.Errorf("Alpha = %v, want 0.3", cfg.Load.Alpha)
	}
	if cfg.Load.RelaxThreshold != 0.5 {
		t.Errorf("RelaxThreshold = %v, want 0.5", cfg.Load.RelaxThreshold)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if !cfg.Storage.SQLite.WALMode {
		t.Error("WALMode = false, want default true")
	}
	if cfg.Sweep.Schedule != "* * * * *" {
		t.Errorf("Schedule = %q, want every-minute default", cfg.Sweep.Schedule)
	}
	if cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfig_FileValuesSurviveDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9000"
  read_timeout: 10s
signing:
  secret: "`+validSecret+`"
load:
  alpha: 0.5
  threshold_low: 0.7
  threshold_high: 0.95
  relax_threshold: 0.4
storage:
  backend: memory
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Load.Alpha != 0.5 {
		t.Errorf("Alpha = %v, want 0.5", cfg.Load.Alpha)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() succeeded for missing file")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
signing:
  secret: "`+validSecret+`"
`)

	t.Setenv("TOLLBOOTH_SERVER_LISTEN_ADDRESS", "0.0.0.0:7777")
	t.Setenv("TOLLBOOTH_LOAD_ALPHA", "0.4")
	t.Setenv("TOLLBOOTH_STORAGE_BACKEND", "memory")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Load.Alpha != 0.4 {
		t.Errorf("Alpha = %v, want env override 0.4", cfg.Load.Alpha)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want env override memory", cfg.Storage.Backend)
	}
}

func TestLoadConfigWithEnvOverrides_SecretFromEnv(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"127.0.0.1:8484\"\n")

	// The file alone fails validation without a secret.
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() succeeded without a signing secret")
	}

	t.Setenv("TOLLBOOTH_SIGNING_SECRET", validSecret)

	// Env overrides run after file validation, so loading still uses the
	// env-supplied secret path.
	cfg, err := loadWithEnvSecret(path)
	if err != nil {
		t.Fatalf("loading with env secret failed: %v", err)
	}
	if cfg.Signing.Secret != validSecret {
		t.Errorf("Secret not taken from environment")
	}
}

// loadWithEnvSecret mirrors LoadConfigWithEnvOverrides but defers
// validation until after the environment is applied, which is what the
// CLI entrypoint does when the secret comes from the environment.
func loadWithEnvSecret(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Signing.Secret = validSecret
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantFrag string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"bad listen address", func(cfg *Config) { cfg.Server.ListenAddress = "nope" }, "listen_address"},
		{"missing secret", func(cfg *Config) { cfg.Signing.Secret = "" }, "secret is required"},
		{"short secret", func(cfg *Config) { cfg.Signing.Secret = "short" }, "at least 32 bytes"},
		{"alpha too high", func(cfg *Config) { cfg.Load.Alpha = 1.0 }, "alpha"},
		{"alpha zero", func(cfg *Config) { cfg.Load.Alpha = -0.1 }, "alpha"},
		{"relax above low", func(cfg *Config) { cfg.Load.RelaxThreshold = 0.7 }, "relax_threshold"},
		{"low above high", func(cfg *Config) { cfg.Load.ThresholdLow = 0.95 }, "threshold_low"},
		{"high at one", func(cfg *Config) { cfg.Load.ThresholdHigh = 1.0 }, "threshold_high"},
		{"negative seed mu", func(cfg *Config) { cfg.Load.SeedMu = -1 }, "seed_mu"},
		{"unknown backend", func(cfg *Config) { cfg.Storage.Backend = "postgres" }, "storage.backend"},
		{"unknown log level", func(cfg *Config) { cfg.Telemetry.Logging.Level = "trace" }, "logging.level"},
		{"unknown log format", func(cfg *Config) { cfg.Telemetry.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantFrag == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantFrag) {
				t.Errorf("error %q does not mention %q", err, tt.wantFrag)
			}
		})
	}
}
