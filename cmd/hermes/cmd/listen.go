/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/di"
	"github.com/ssargent/hermesportal/pkg/listener"
	"github.com/ssargent/hermesportal/pkg/market"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen [tokens_csv]",
	Short: "Join the multicast feed and decode live packets",
	Long: `Join the exchange multicast group and decode every datagram.

The optional token list restricts output to the given instruments.

Examples:
  hermes listen 35001,35002 --inst fo
  hermes listen --inst cm --market all --out file --file-base ./data
  hermes listen 35001 --out socket --socket-token=secret --socket-port=9100
  hermes listen --inst cm --capture session.cap
  hermes listen --inst cm --dump-pkt first.bin --dump-hex`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		if err := applyFlags(cmd, cfg, args); err != nil {
			return err
		}
		logger := loggerFrom(cmd)
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			l := logger.Level(zerolog.DebugLevel)
			logger = &l
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dumpPath, _ := cmd.Flags().GetString("dump-pkt")
		dumpHex, _ := cmd.Flags().GetBool("dump-hex")
		ln, err := listener.Open(ctx, listener.Config{
			Group:      cfg.Feed.MulticastIP,
			Port:       cfg.FeedPort(),
			Interface:  cfg.Feed.Interface,
			ReadBuffer: cfg.Feed.ReadBuffer,
			DumpPath:   dumpPath,
			DumpHex:    dumpHex,
			HexOut:     cmd.OutOrStdout(),
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer ln.Close()

		if dumpPath != "" || dumpHex {
			logger.Info().Msg("waiting for one packet to dump")
			return ln.Run(ctx, nil)
		}

		container, err := di.NewContainer(cfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		defer container.Close()

		if schema, _ := cmd.Flags().GetBool("debug-schema"); schema {
			if err := market.PrintSchemas(cmd.OutOrStdout(), container.Registry()); err != nil {
				return err
			}
		}

		logger.Info().
			Str("feed", container.Feed().String()).
			Str("group", fmt.Sprintf("%s:%d", cfg.Feed.MulticastIP, cfg.FeedPort())).
			Int("tokens", len(cfg.Filter.Tokens)).
			Msg("decoding")

		served := make(chan struct{})
		go func() {
			defer close(served)
			if err := container.ServeStatus(ctx); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()

		if err := ln.Run(ctx, container.Handle); err != nil {
			return err
		}
		stop()
		<-served

		st := container.Status()
		logger.Info().
			Uint64("packets", st.Packets).
			Uint64("records", st.Records).
			Uint64("failures", st.Failures).
			Msg("stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	addFeedFlags(listenCmd)
	addOutputFlags(listenCmd)
	listenCmd.Flags().String("mcast-ip", "", "Multicast group (default 233.1.2.5)")
	listenCmd.Flags().Int("mcast-port", 0, "Multicast port (default 34330 for fo, 34074 for cm)")
	listenCmd.Flags().String("iface", "", "Interface to join the group on")
	listenCmd.Flags().Bool("debug-schema", false, "Print the output schema of every enabled code")
	listenCmd.Flags().String("dump-pkt", "", "Write the first datagram to this file and exit")
	listenCmd.Flags().Bool("dump-hex", false, "Print the first 256 bytes of the first datagram and exit")
	listenCmd.Flags().String("status-addr", "", "Serve /metrics and /api/v1 on this address")
	listenCmd.Flags().String("blob-dir", "", "Persist undecodable payloads under this directory")
	listenCmd.Flags().String("capture", "", "Append every datagram to this capture file")
}
