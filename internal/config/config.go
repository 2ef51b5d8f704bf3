package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Defaults.
const (
	DefaultUserAgent   = "prctx"
	DefaultSeparator   = "\n\n"
	DefaultPerPage     = 100
	DefaultHTTPTimeout = 30 * time.Second
	DefaultLogLevel    = "info"
	DefaultPort        = 8000
	DefaultHost        = "github.com"
)

// Duration is a time.Duration read from strings such as "30s" in both the
// config file and the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all configuration for the prctx hosts
type Config struct {
	// GitHub API settings
	APIURL      string   `toml:"api_url" env:"GITHUB_API_URL"`
	UserAgent   string   `toml:"user_agent" env:"PRCTX_USER_AGENT"`
	PerPage     int      `toml:"per_page" env:"PRCTX_PER_PAGE"`
	HTTPTimeout Duration `toml:"http_timeout" env:"PRCTX_HTTP_TIMEOUT"`
	// Host is the web host accepted in pull request links and remotes.
	Host string `toml:"github_host" env:"PRCTX_GITHUB_HOST"`

	// Document settings
	Separator     string `toml:"separator" env:"PRCTX_SEPARATOR"`
	IncludeHeader bool   `toml:"include_header" env:"PRCTX_INCLUDE_HEADER"`

	LogLevel string `toml:"log_level" env:"PRCTX_LOG_LEVEL"`

	// Server settings
	Port int `toml:"port" env:"PORT"`

	vars map[string]string
}

// Options selects the files Load reads.
type Options struct {
	// ConfigPath is a TOML file. Empty tries DefaultPath and tolerates its
	// absence; an explicit path must exist.
	ConfigPath string
	// EnvFiles are dotenv files that must exist.
	EnvFiles []string
	// Dir is searched for an optional .env file. Empty skips it.
	Dir string
	// Environ replaces the process environment, mostly for tests.
	Environ map[string]string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		UserAgent:   DefaultUserAgent,
		PerPage:     DefaultPerPage,
		HTTPTimeout: Duration(DefaultHTTPTimeout),
		Host:        DefaultHost,
		Separator:   DefaultSeparator,
		LogLevel:    DefaultLogLevel,
		Port:        DefaultPort,
		vars:        map[string]string{},
	}
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "prctx", "config.toml")
}

// Load layers defaults, the TOML file, dotenv files and the environment, in
// increasing precedence.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(opts.ConfigPath); err != nil {
		return nil, err
	}

	vars, err := snapshot(opts)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.vars = vars
	cfg.Separator = Unescape(cfg.Separator)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// snapshot merges dotenv files under the process environment. Nothing is
// exported to the process.
func snapshot(opts Options) (map[string]string, error) {
	vars := make(map[string]string)

	if opts.Dir != "" {
		fromDir, err := godotenv.Read(filepath.Join(opts.Dir, ".env"))
		switch {
		case err == nil:
			merge(vars, fromDir)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	for _, file := range opts.EnvFiles {
		fromFile, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", file, err)
		}
		merge(vars, fromFile)
	}

	environ := opts.Environ
	if environ == nil {
		environ = processEnv()
	}
	merge(vars, environ)
	return vars, nil
}

func processEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r")

// Unescape turns the escapes \n, \t and \r written in a shell or dotenv
// file into the characters they name.
func Unescape(s string) string {
	return escapes.Replace(s)
}

// Vars returns the merged variable snapshot the config was parsed from.
// Credentials are read from it.
func (c *Config) Vars() map[string]string {
	out := make(map[string]string, len(c.vars))
	merge(out, c.vars)
	return out
}

// Hosts lists the hosts accepted in links and remotes.
func (c *Config) Hosts() []string {
	if c.Host == "" || c.Host == DefaultHost {
		return []string{DefaultHost}
	}
	return []string{c.Host, DefaultHost}
}

// Validate checks numeric settings.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.PerPage <= 0 || c.PerPage > 100 {
		return fmt.Errorf("PRCTX_PER_PAGE must be between 1 and 100, got %d", c.PerPage)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("PRCTX_HTTP_TIMEOUT must be greater than 0")
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	return nil
}
