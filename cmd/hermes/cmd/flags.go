/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/config"
	"github.com/ssargent/hermesportal/pkg/market"
)

// addFeedFlags registers the flags that select feed family and records.
func addFeedFlags(cmd *cobra.Command) {
	cmd.Flags().String("inst", "", "Feed family: fo or cm")
	cmd.Flags().String("enable", "", "Comma-separated message codes to decode (default 7202,7208)")
	cmd.Flags().String("market", "", "Set to 'all' to decode every known message code")
}

// addOutputFlags registers the flags that pick where lines go.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "Output mode: console, file or socket")
	cmd.Flags().String("file-base", "", "Base directory for file output")
	cmd.Flags().Int("socket-port", 0, "Relay port on 127.0.0.1 (0 = ephemeral)")
	cmd.Flags().String("socket-token", "", "Relay auth token (required for socket output)")
	cmd.Flags().Int("socket-maxq", 0, "Relay queue capacity in lines")
	cmd.Flags().Int("socket-batch-bytes", 0, "Relay batch size in bytes")
	cmd.Flags().Bool("debug", false, "Mirror output to the console and log at debug level")
}

// applyFlags copies every flag the user set onto cfg and parses the optional
// token list argument.
func applyFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	f := cmd.Flags()
	changed := func(name string) bool {
		fl := f.Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("inst") {
		cfg.Feed.Family, _ = f.GetString("inst")
	}
	if changed("mcast-ip") {
		cfg.Feed.MulticastIP, _ = f.GetString("mcast-ip")
	}
	if changed("mcast-port") {
		port, _ := f.GetInt("mcast-port")
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: --mcast-port %d", config.ErrInvalidPort, port)
		}
		cfg.Feed.Port = port
	}
	if changed("iface") {
		cfg.Feed.Interface, _ = f.GetString("iface")
	}
	if changed("enable") {
		enable, _ := f.GetString("enable")
		cfg.Filter.Enabled = []string{enable}
	}
	if changed("market") {
		m, _ := f.GetString("market")
		cfg.Filter.MarketAll = strings.EqualFold(m, "all")
	}
	if changed("out") {
		cfg.Output.Mode, _ = f.GetString("out")
	}
	if changed("file-base") {
		cfg.Output.File.BaseDir, _ = f.GetString("file-base")
	}
	if changed("socket-port") {
		cfg.Output.Socket.Port, _ = f.GetInt("socket-port")
	}
	if changed("socket-token") {
		cfg.Output.Socket.Token, _ = f.GetString("socket-token")
	}
	if changed("socket-maxq") {
		cfg.Output.Socket.MaxQueue, _ = f.GetInt("socket-maxq")
	}
	if changed("socket-batch-bytes") {
		cfg.Output.Socket.BatchBytes, _ = f.GetInt("socket-batch-bytes")
	}
	if debug, _ := f.GetBool("debug"); debug {
		cfg.Output.Mirror = true
		cfg.Logging.Level = "debug"
	}
	if changed("status-addr") {
		cfg.Status.Enabled = true
		cfg.Status.Addr, _ = f.GetString("status-addr")
	}
	if changed("capture") {
		cfg.Capture.Path, _ = f.GetString("capture")
	}
	if changed("blob-dir") {
		cfg.Diagnostics.Enabled = true
		cfg.Diagnostics.BlobDir, _ = f.GetString("blob-dir")
	}

	if len(args) > 0 {
		strikes, err := market.ParseStrikeList(args[0])
		if err != nil {
			return err
		}
		cfg.Filter.Tokens = strikes.Tokens()
	}
	return nil
}
