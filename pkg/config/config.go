// Package config loads the engine configuration from a YAML file with
// environment variable overrides for the values that differ between
// deployments or should stay out of files, such as the device
// password.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values read naturally, e.g.
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full engine configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Device   DeviceConfig   `yaml:"device"`
	Redis    RedisConfig    `yaml:"redis"`
	Verify   VerifyConfig   `yaml:"verify"`
	Audit    AuditConfig    `yaml:"audit"`

	// SVLANBase is the lowest service vlan the allocator hands out.
	// Values below it are reserved for the lab's own infrastructure.
	SVLANBase int `yaml:"svlan_base"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type DeviceConfig struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"`
}

// RedisConfig points at the Redis server backing distributed locks.
// An empty address selects in-process locking.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type VerifyConfig struct {
	Attempts int      `yaml:"attempts"`
	Interval Duration `yaml:"interval"`
}

type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Username: "admin",
			Timeout:  Duration(30 * time.Second),
		},
		Verify: VerifyConfig{
			Attempts: 3,
			Interval: Duration(2 * time.Second),
		},
		Audit: AuditConfig{
			Path:       "/var/log/blab/audit.log",
			MaxSize:    10 << 20,
			MaxBackups: 5,
		},
		SVLANBase: 1001,
	}
}

// Load reads path, fills in defaults and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BLAB_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("BLAB_DEVICE_USERNAME"); v != "" {
		c.Device.Username = v
	}
	if v := os.Getenv("BLAB_DEVICE_PASSWORD"); v != "" {
		c.Device.Password = v
	}
	if v := os.Getenv("BLAB_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("BLAB_AUDIT_PATH"); v != "" {
		c.Audit.Path = v
	}
}

func (c *Config) validate() error {
	if c.SVLANBase < 2 || c.SVLANBase > 4094 {
		return fmt.Errorf("svlan_base %d outside valid vlan range", c.SVLANBase)
	}
	if c.Verify.Attempts < 1 {
		return fmt.Errorf("verify.attempts must be at least 1, got %d", c.Verify.Attempts)
	}
	return nil
}
