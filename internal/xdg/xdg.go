// Package xdg provides XDG Base Directory paths for Kudos.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "kudos"

// ConfigFileName is the name of the optional YAML config file.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for kudos.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").Errorf("neither XDG_CONFIG_HOME nor HOME is set")
	}
	return filepath.Join(home, ".config", appName), nil
}

// DefaultConfigFile returns the path of config.yaml inside ConfigDir.
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
