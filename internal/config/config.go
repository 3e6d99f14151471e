// Package config loads orquestator.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"

	"github.com/stevehiehn/orquestator/internal/params"
)

// FileName is the config file looked up in the working directory.
const FileName = "orquestator.toml"

// EnvPath overrides the config path when --config is not given.
const EnvPath = "ORQUESTATOR_CONFIG"

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// PathsConfig holds directory locations, relative to the base dir unless
// absolute.
type PathsConfig struct {
	WorkflowsDir string `toml:"workflows_dir" default:"workflows" validate:"required"`
	RunsDir      string `toml:"runs_dir" default:"runs" validate:"required"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver          string        `toml:"driver" default:"file" validate:"oneof=file postgres"`
	DSN             string        `toml:"dsn" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `toml:"max_open_conns" default:"10" validate:"gte=1,lte=100"`
	MaxIdleConns    int           `toml:"max_idle_conns" default:"5" validate:"gte=0,lte=50"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format LogFormat `toml:"format" default:"text" validate:"oneof=json text"`
	File   string    `toml:"file"`
}

// CommandPollingConfig holds polling defaults for command executors.
type CommandPollingConfig struct {
	Retries  int     `toml:"retries" default:"5" validate:"gte=1"`
	Interval float64 `toml:"interval" default:"5" validate:"gte=0"`
}

// PollingConfig holds polling defaults for the api executor.
type PollingConfig struct {
	Retries  int                  `toml:"retries" default:"10" validate:"gte=1"`
	Interval float64              `toml:"interval" default:"5" validate:"gte=0"`
	Command  CommandPollingConfig `toml:"command"`
}

// HTTPConfig holds HTTP client settings.
type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout" default:"10s" validate:"gt=0"`
}

// CypressConfig maps module names to spec folders.
type CypressConfig struct {
	Modules map[string]string `toml:"modules"`
}

// ProxyConfig configures the Kerberos CONNECT proxy.
type ProxyConfig struct {
	Listen       string `toml:"listen" default:":3129" validate:"required"`
	UpstreamHost string `toml:"upstream_host"`
	UpstreamPort int    `toml:"upstream_port" default:"8080" validate:"gte=1,lte=65535"`
	BufferSize   int    `toml:"buffer_size" default:"8192" validate:"gte=512"`
	// Negotiate is a pre-generated SPNEGO token. Empty sends the service
	// principal instead.
	Negotiate string `toml:"negotiate"`
}

// Config is the main configuration struct.
type Config struct {
	Paths   PathsConfig   `toml:"paths"`
	Store   StoreConfig   `toml:"store"`
	Logging LoggingConfig `toml:"logging"`
	Polling PollingConfig `toml:"polling"`
	HTTP    HTTPConfig    `toml:"http"`
	Cypress CypressConfig `toml:"cypress"`
	Proxy   ProxyConfig   `toml:"proxy"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads path over the defaults and validates the result. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path resolves the config location: explicit flag, then $ORQUESTATOR_CONFIG,
// then orquestator.toml in baseDir.
func Path(flag, baseDir string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return filepath.Join(baseDir, FileName)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := params.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WorkflowsDir returns the absolute workflows directory path.
func (c *Config) WorkflowsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.WorkflowsDir)
}

// RunsDir returns the absolute runs directory path.
func (c *Config) RunsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.RunsDir)
}

// LogFile returns the absolute log file path, or "" when file logging is off.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	return resolve(baseDir, c.Logging.File)
}

// PollInterval converts the api polling interval to a duration.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Polling.Interval)
}

// CommandPollInterval converts the command polling interval to a duration.
func (c *Config) CommandPollInterval() time.Duration {
	return seconds(c.Polling.Command.Interval)
}

// CypressFolder looks up the spec folder for a module.
func (c *Config) CypressFolder(module string) (string, bool) {
	f, ok := c.Cypress.Modules[module]
	return f, ok
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
