/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration with a generated relay token and
status API key.

Examples:
  hermes init
  hermes init --path ./hermes.toml --data-dir /srv/hermes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(path) && !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		cfg, err := config.BootstrapConfig(path, dataDir)
		if err != nil {
			return err
		}

		cmd.Printf("Wrote %s\n", path)
		cmd.Printf("Relay token:    %s\n", cfg.Output.Socket.Token)
		cmd.Printf("Status API key: %s\n", cfg.Status.APIKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("path", "", "Where to write the config (default "+config.GetDefaultConfigPath()+")")
	initCmd.Flags().String("data-dir", "", "Base directory for file output and diagnostics")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
}
