// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/kudos-app/kudos/internal/xdg"
)

// envPrefix marks Kudos-specific environment variables.
const envPrefix = "KUDOS_"

// sections are the nested config keys; KUDOS_LOG_LEVEL maps to log.level.
var sections = []string{"session", "log", "hash", "db"}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"env":          "env",
	"listen":       "listen",
	"metrics-addr": "metrics_addr",
	"database-url": "database_url",
	"auto-migrate": "auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. It must exist when set.
	// When empty, the XDG default is used if present.
	ConfigFile string
	// DotEnvFile is loaded into the process environment before reading it.
	// Missing files are ignored. Empty means ".env".
	DotEnvFile string
	// Flags are applied last. Flags left at their defaults only fill
	// keys that no other source set.
	Flags *pflag.FlagSet
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("env", d.Env, "deployment environment (development, production, test)")
	fs.String("listen", d.Listen, "HTTP listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics and health listen address (empty to disable)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply pending migrations on startup")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Load builds the configuration from defaults, the YAML file, the
// environment and flags. It does not validate; call Validate.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadDotEnv(opts.DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	path, explicit, err := configPath(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "dotenv").With("path", path).Wrap(err)
	}
	return nil
}

// configPath resolves the file to load. An empty path means none.
func configPath(explicit string) (path string, isExplicit bool, err error) {
	if explicit != "" {
		return explicit, true, nil
	}
	path, err = xdg.DefaultConfigFile()
	if err != nil {
		// No home directory: run from env and flags only.
		return "", false, nil //nolint:nilerr // config file is optional
	}
	return path, false, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}

	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}
	return nil
}

// envKey maps an environment variable to a config key. Unrelated and
// empty variables map to "" and are skipped.
func envKey(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	switch key {
	case "SESSION_SECRET":
		return "session.secrets", splitList(value)
	case "DATABASE_URL":
		return "database_url", value
	}

	rest, ok := strings.CutPrefix(key, envPrefix)
	if !ok || rest == "" {
		return "", nil
	}
	name := strings.ToLower(rest)
	for _, section := range sections {
		if field, ok := strings.CutPrefix(name, section+"_"); ok && field != "" {
			name = section + "." + field
			break
		}
	}
	if name == "session.secrets" {
		return name, splitList(value)
	}
	return name, value
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}
