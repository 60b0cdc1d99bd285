/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/di"
	"github.com/ssargent/hermesportal/pkg/market"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CSV layout of every enabled message code",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		if err := applyFlags(cmd, cfg, nil); err != nil {
			return err
		}
		feed, err := market.ParseFeed(cfg.Feed.Family)
		if err != nil {
			return err
		}
		sel, err := di.Selection(cfg.Filter)
		if err != nil {
			return err
		}
		registry, err := market.BuildRegistry(feed, sel)
		if err != nil {
			return err
		}
		return market.PrintSchemas(cmd.OutOrStdout(), registry)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	addFeedFlags(schemaCmd)
}
