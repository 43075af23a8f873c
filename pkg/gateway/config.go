// Package gateway implements the MyPitch backend HTTP service: interview
// session resources, single-use live credentials, transcript persistence, and
// report scoring.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/live"
)

// Config is the service configuration, loaded from YAML with env overrides
// for secrets.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Interview InterviewConfig `yaml:"interview"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8787".
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string. The DATABASE_URL environment
	// variable takes precedence.
	DSN string `yaml:"dsn"`
}

type GeminiConfig struct {
	// APIKey is never read from YAML; set GEMINI_API_KEY instead.
	APIKey string `yaml:"-"`

	// LiveModel is the realtime model session credentials are constrained to.
	LiveModel string `yaml:"live_model"`

	// ReportModel is the model used for transcript scoring.
	ReportModel string `yaml:"report_model"`
}

type InterviewConfig struct {
	// TokenTTL bounds the lifetime of minted session credentials.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8787",
			LogLevel:      "info",
			ShutdownGrace: 10 * time.Second,
		},
		Gemini: GeminiConfig{
			LiveModel:   live.DefaultModel,
			ReportModel: "gemini-2.5-flash",
		},
		Interview: InterviewConfig{
			TokenTTL: 30 * time.Minute,
		},
	}
}

// LoadConfig reads the YAML file at path (when non-empty), applies env
// overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		cfg, err = loadConfigFrom(f, cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadConfigFrom decodes YAML from r on top of base. Unknown fields are
// rejected so typos fail loudly.
func loadConfigFrom(r io.Reader, base Config) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for coherent values, joining all
// failures into one error.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	switch c.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required (or set DATABASE_URL)"))
	}
	if c.Gemini.LiveModel == "" {
		errs = append(errs, fmt.Errorf("gemini.live_model is required"))
	}
	if c.Gemini.ReportModel == "" {
		errs = append(errs, fmt.Errorf("gemini.report_model is required"))
	}
	if c.Interview.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("interview.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}
