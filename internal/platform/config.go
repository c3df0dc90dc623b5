package platform

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the environment-driven deployment configuration. A pressd.yaml
// file, when present, takes precedence over environment variables.
type Config struct {
	DataDir         string        `env:"PRESSD_DATA_DIR" envDefault:"." yaml:"data_dir"`
	DocumentFile    string        `env:"PRESSD_DOCUMENT_FILE" envDefault:"db.json" yaml:"document_file"`
	AuditFile       string        `env:"PRESSD_AUDIT_FILE" envDefault:"audit.log" yaml:"audit_file"`
	LockTimeout     time.Duration `env:"PRESSD_LOCK_TIMEOUT" envDefault:"5s" yaml:"lock_timeout"`
	RateLimitMax    int           `env:"PRESSD_RATE_LIMIT_MAX" envDefault:"5" yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `env:"PRESSD_RATE_LIMIT_WINDOW" envDefault:"15m" yaml:"rate_limit_window"`
	BcryptCost      int           `env:"PRESSD_BCRYPT_COST" envDefault:"12" yaml:"bcrypt_cost"`
}

// LoadConfig builds the configuration from defaults and environment
// variables, then overlays the YAML file at path if one is given and
// exists.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("platform: parsing environment: %w", err)
	}

	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("platform: reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("platform: parsing config file: %w", err)
	}
	return cfg, nil
}

// Options converts the configuration into runtime options.
func (c Config) Options() []Option {
	return []Option{
		WithDocumentFile(c.DocumentFile),
		WithAuditFile(c.AuditFile),
		WithLockTimeout(c.LockTimeout),
		WithRateLimit(c.RateLimitMax, c.RateLimitWindow),
	}
}
