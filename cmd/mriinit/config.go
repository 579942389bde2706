package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mriinit/pkg/config"
)

var (
	configOutPath string
	forceConfig   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configOutPath); err == nil && !forceConfig {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configOutPath)
		}
		if err := config.CreateDefaultConfigFile(configOutPath); err != nil {
			return err
		}
		slog.Info("Wrote default configuration", "path", configOutPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configOutPath, "path", "mriinit.yaml", "Configuration file to write")
	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
