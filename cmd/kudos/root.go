// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/kudos-app/kudos/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Kudos CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kudos",
		Short: "Kudos - session-cookie authentication service",
		Long: `Kudos serves the login, registration and logout flows backed by
PostgreSQL and signed, encrypted session cookies.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/kudos/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment (default: .env)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the configuration for cmd using the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: configFile,
		DotEnvFile: envFile,
		Flags:      cmd.Flags(),
	})
}
