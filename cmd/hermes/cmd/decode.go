/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/capture"
	"github.com/ssargent/hermesportal/pkg/di"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <packet-file>...",
	Short: "Decode captured datagrams offline",
	Long: `Decode datagrams captured with 'hermes listen --dump-pkt' or exported
with 'hermes blobs export'. Each file holds exactly one datagram, unless --from-capture is set, in
which case each file is a capture written by 'hermes listen --capture'.

Examples:
  hermes decode first.bin --inst cm
  hermes decode session.cap --from-capture --inst cm --market all
  hermes decode a.bin b.bin --inst fo --tokens 35001,35002`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		var tokenArgs []string
		if tokens, _ := cmd.Flags().GetString("tokens"); tokens != "" {
			tokenArgs = []string{tokens}
		}
		if err := applyFlags(cmd, cfg, tokenArgs); err != nil {
			return err
		}
		// offline decoding never serves or records again
		cfg.Status.Enabled = false
		cfg.Capture.Path = ""

		container, err := di.NewContainer(cfg, cmd.OutOrStdout(), loggerFrom(cmd))
		if err != nil {
			return err
		}
		defer container.Close()

		fromCapture, _ := cmd.Flags().GetBool("from-capture")
		for _, path := range args {
			if fromCapture {
				if err := decodeCapture(container, path); err != nil {
					return err
				}
				continue
			}
			pkt, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read packet file: %w", err)
			}
			container.Parser().Parse(pkt)
		}

		st := container.Status()
		loggerFrom(cmd).Info().
			Int("files", len(args)).
			Uint64("records", st.Records).
			Uint64("failures", st.Failures).
			Uint64("unknown_codes", st.UnknownCodes).
			Str("locus", st.Codec.Locus).
			Msg("decoded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	addFeedFlags(decodeCmd)
	addOutputFlags(decodeCmd)
	decodeCmd.Flags().String("tokens", "", "Comma-separated instrument tokens to keep")
	decodeCmd.Flags().String("blob-dir", "", "Persist undecodable payloads under this directory")
	decodeCmd.Flags().Bool("from-capture", false, "Read arguments as capture files")
}

// decodeCapture parses every frame of a capture file. A torn final frame is
// reported after the intact ones are decoded.
func decodeCapture(container *di.Container, path string) error {
	r, err := capture.NewReader(capture.ReaderConfig{Path: path})
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer r.Close()

	it := r.Iterator()
	for it.Next() {
		container.Parser().Parse(it.Frame().Payload)
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("capture %s at offset %d: %w", path, r.Offset(), err)
	}
	return nil
}
