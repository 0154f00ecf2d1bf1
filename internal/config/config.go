package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is read from the working directory when present.
	DefaultFile = "gauge.yml"
	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"

	DefaultListen         = ":8080"
	DefaultConnectTimeout = 5 * time.Second
	DefaultDrainTimeout   = 5 * time.Second

	ModeOptimistic = "optimistic"
	ModeConfirmed  = "confirmed"
)

// Environment variables. They override .env, which overrides gauge.yml.
const (
	EnvProjectID      = "GAUGE_PROJECT_ID"
	EnvDatabaseURL    = "GAUGE_DATABASE_URL"
	EnvAPIKey         = "GAUGE_API_KEY"
	EnvConnectTimeout = "GAUGE_CONNECT_TIMEOUT"
	EnvListenAddr     = "GAUGE_LISTEN_ADDR"
	EnvWriteMode      = "GAUGE_WRITE_MODE"
)

// ProjectPattern keeps project ids usable inside Redis key names and
// container names: lowercase alphanumeric, hyphens allowed but not at
// start/end.
var ProjectPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// MaxProjectLength is the maximum length for a project id
const MaxProjectLength = 63

// GaugeConfig is the merged configuration from gauge.yml, .env and the environment
type GaugeConfig struct {
	Version string       `yaml:"version"`
	Store   StoreConfig  `yaml:"store"`
	Sync    SyncConfig   `yaml:"sync"`
	Server  ServerConfig `yaml:"server"`
}

// StoreConfig holds the store credentials. All of them are required for
// anything to work except APIKey, which an unauthenticated dev store omits.
type StoreConfig struct {
	ProjectID   string `yaml:"project_id"`
	DatabaseURL string `yaml:"database_url"` // redis:// or rediss:// URL
	APIKey      string `yaml:"api_key"`      // sent as the Redis password
}

// SyncConfig tunes the replicas
type SyncConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // default 5s
	DrainTimeout   time.Duration `yaml:"drain_timeout"`   // default 5s
	Mode           string        `yaml:"mode"`            // optimistic (default) or confirmed
}

// ServerConfig configures `gauge serve`
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Error is a configuration error. It lists every missing setting and every
// invalid value so the user can fix them all in one go.
type Error struct {
	Missing []string // environment variable names
	Invalid []string // human readable problems
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Invalid...)
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// IsError reports whether err is a configuration error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Sources says where Load reads from. Empty fields select the defaults;
// a missing default file is not an error but a missing explicit one is.
type Sources struct {
	File    string
	EnvFile string
}

// Load reads gauge.yml and .env, applies environment overrides and
// validates the result. Validation failures are returned as *Error.
func Load(src Sources) (*GaugeConfig, error) {
	cfg, err := Read(src)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that need only part of
// the configuration.
func Read(src Sources) (*GaugeConfig, error) {
	var cfg GaugeConfig

	file, explicit := src.File, true
	if file == "" {
		file, explicit = DefaultFile, false
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	envFile, explicit := src.EnvFile, true
	if envFile == "" {
		envFile, explicit = DefaultEnvFile, false
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !os.IsNotExist(err) || explicit {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		dotenv = map[string]string{}
	}

	if err := cfg.applyEnv(lookup(dotenv)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// lookup consults the process environment first, then .env values.
func lookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *GaugeConfig) applyEnv(get func(string) (string, bool)) error {
	if v, ok := get(EnvProjectID); ok {
		c.Store.ProjectID = v
	}
	if v, ok := get(EnvDatabaseURL); ok {
		c.Store.DatabaseURL = v
	}
	if v, ok := get(EnvAPIKey); ok {
		c.Store.APIKey = v
	}
	if v, ok := get(EnvListenAddr); ok {
		c.Server.Listen = v
	}
	if v, ok := get(EnvWriteMode); ok {
		c.Sync.Mode = v
	}
	if v, ok := get(EnvConnectTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Invalid: []string{fmt.Sprintf("%s: %q is not a duration (e.g. 5s)", EnvConnectTimeout, v)}}
		}
		c.Sync.ConnectTimeout = d
	}
	return nil
}

// Validate checks required settings and fills in defaults
func (c *GaugeConfig) Validate() error {
	cfgErr := &Error{}

	if c.Version != "" && c.Version != "1.0" {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("unsupported version: %s (expected: 1.0)", c.Version))
	}

	if c.Store.ProjectID == "" {
		cfgErr.Missing = append(cfgErr.Missing, EnvProjectID)
	} else if err := ValidateProject(c.Store.ProjectID); err != nil {
		cfgErr.Invalid = append(cfgErr.Invalid, err.Error())
	}

	if c.Store.DatabaseURL == "" {
		cfgErr.Missing = append(cfgErr.Missing, EnvDatabaseURL)
	} else if _, err := redis.ParseURL(c.Store.DatabaseURL); err != nil {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("%s: %v", EnvDatabaseURL, err))
	}

	if c.Sync.ConnectTimeout < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("sync.connect_timeout must be >= 0, got %s", c.Sync.ConnectTimeout))
	}
	if c.Sync.DrainTimeout < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("sync.drain_timeout must be >= 0, got %s", c.Sync.DrainTimeout))
	}

	switch c.Sync.Mode {
	case "":
		c.Sync.Mode = ModeOptimistic
	case ModeOptimistic, ModeConfirmed:
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("invalid sync mode: %s (must be '%s' or '%s')", c.Sync.Mode, ModeOptimistic, ModeConfirmed))
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return cfgErr
	}

	if c.Sync.ConnectTimeout == 0 {
		c.Sync.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Sync.DrainTimeout == 0 {
		c.Sync.DrainTimeout = DefaultDrainTimeout
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	return nil
}

// ValidateProject checks a project id against ProjectPattern.
func ValidateProject(id string) error {
	if len(id) > MaxProjectLength {
		return fmt.Errorf("project id too long: %d characters (max: %d)", len(id), MaxProjectLength)
	}
	if !ProjectPattern.MatchString(id) {
		return fmt.Errorf("invalid project id '%s': must be lowercase alphanumeric with hyphens (not at start/end)", id)
	}
	return nil
}

// RedisOptions builds connection options from the store settings. The API
// key, when set, replaces any password in the URL.
func (c *GaugeConfig) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", EnvDatabaseURL, err)
	}
	if c.Store.APIKey != "" {
		opts.Password = c.Store.APIKey
	}
	return opts, nil
}

// Confirmed reports whether replicas should wait for the store before
// applying local changes.
func (c *GaugeConfig) Confirmed() bool {
	return c.Sync.Mode == ModeConfirmed
}
