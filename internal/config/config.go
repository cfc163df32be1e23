// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

// Package config loads Kudos configuration from a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/kudos-app/kudos/internal/logging"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

var (
	validEnvs       = []string{EnvDevelopment, EnvProduction, EnvTest}
	validLogFormats = []string{"json", "text"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

// Config is the complete Kudos configuration.
type Config struct {
	Env             string        `koanf:"env" json:"env,omitempty" yaml:"env" jsonschema:"enum=development,enum=production,enum=test"`
	Listen          string        `koanf:"listen" json:"listen,omitempty" yaml:"listen"`
	MetricsAddr     string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" yaml:"metrics_addr"`
	DatabaseURL     string        `koanf:"database_url" json:"database_url,omitempty" yaml:"database_url"`
	AutoMigrate     bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty" yaml:"auto_migrate"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout"`
	Session         SessionConfig `koanf:"session" json:"session,omitempty" yaml:"session"`
	Log             LogConfig     `koanf:"log" json:"log,omitempty" yaml:"log"`
	Hash            HashConfig    `koanf:"hash" json:"hash,omitempty" yaml:"hash"`
	DB              DBConfig      `koanf:"db" json:"db,omitempty" yaml:"db"`
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	// Secrets sign new cookies with the first entry and accept all of them.
	Secrets []string      `koanf:"secrets" json:"secrets,omitempty" yaml:"secrets"`
	MaxAge  time.Duration `koanf:"max_age" json:"max_age,omitempty" yaml:"max_age"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HashConfig is the argon2id work factor for new password hashes.
type HashConfig struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" yaml:"time" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" yaml:"memory_kib" jsonschema:"minimum=8192"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" yaml:"threads" jsonschema:"minimum=1"`
}

// DBConfig configures the connection pool.
type DBConfig struct {
	MaxConns        int32         `koanf:"max_conns" json:"max_conns,omitempty" yaml:"max_conns" jsonschema:"minimum=0"`
	ConnectAttempts uint64        `koanf:"connect_attempts" json:"connect_attempts,omitempty" yaml:"connect_attempts" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" json:"connect_backoff,omitempty" yaml:"connect_backoff"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Env:             EnvDevelopment,
		Listen:          ":3000",
		MetricsAddr:     "127.0.0.1:9100",
		ShutdownTimeout: 10 * time.Second,
		Session: SessionConfig{
			MaxAge: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Hash: HashConfig{
			Time:      1,
			MemoryKiB: 64 * 1024,
			Threads:   4,
		},
		DB: DBConfig{
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
	}
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SessionSecrets returns the configured secrets without blank entries.
func (c *Config) SessionSecrets() []string {
	var secrets []string
	for _, s := range c.Session.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

// ValidateOptions selects which requirements Validate enforces.
type ValidateOptions struct {
	RequireDatabase bool
	RequireSecret   bool
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate(opts ValidateOptions) error {
	var problems []string

	if !slices.Contains(validEnvs, c.Env) {
		problems = append(problems, "env must be one of "+strings.Join(validEnvs, ", "))
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		problems = append(problems, "log.format must be one of "+strings.Join(validLogFormats, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		problems = append(problems, "log.level must be one of "+strings.Join(validLogLevels, ", "))
	}
	if opts.RequireSecret && len(c.SessionSecrets()) == 0 {
		problems = append(problems, "SESSION_SECRET must be set")
	}
	if opts.RequireDatabase && c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL must be set")
	}
	if c.Session.MaxAge < 0 {
		problems = append(problems, "session.max_age must not be negative")
	}
	if c.Listen == "" {
		problems = append(problems, "listen address must be set")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print: secrets are masked and the
// database password is hidden.
func (c Config) Redacted() Config {
	out := c
	if len(c.Session.Secrets) > 0 {
		out.Session.Secrets = make([]string, len(c.Session.Secrets))
		for i := range out.Session.Secrets {
			out.Session.Secrets[i] = logging.Redacted
		}
	}
	if c.DatabaseURL != "" {
		if u, err := url.Parse(c.DatabaseURL); err == nil && u.User != nil {
			out.DatabaseURL = u.Redacted()
		}
	}
	return out
}
