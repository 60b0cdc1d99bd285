/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/config"
	"github.com/ssargent/hermesportal/pkg/di"
	"github.com/ssargent/hermesportal/pkg/listener"
	"github.com/ssargent/hermesportal/pkg/parser"
	"github.com/ssargent/hermesportal/pkg/storage"
)

// blobsCmd represents the blobs command
var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Inspect payloads the decoder could not handle",
}

var blobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored payloads, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withBlobStore(cmd, func(store *storage.BlobStore) error {
			blobs, err := store.List(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "ID\tTIME\tFEED\tSTAGE\tSIZE\tREASON\n")
			for _, b := range blobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					b.ID, b.Time.UTC().Format(time.RFC3339), b.Feed, b.Stage, len(b.Payload), b.Reason)
			}
			return nil
		})
	},
}

var blobsExportCmd = &cobra.Command{
	Use:   "export <id> <file>",
	Short: "Write a stored payload to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlob(cmd, args[0], func(b storage.Blob) error {
			if err := os.WriteFile(args[1], b.Payload, 0600); err != nil {
				return fmt.Errorf("failed to export blob: %w", err)
			}
			cmd.Printf("Wrote %d bytes to %s\n", len(b.Payload), args[1])
			return nil
		})
	},
}

var blobsReplayCmd = &cobra.Command{
	Use:   "replay <id>",
	Short: "Run a stored payload through the decoder again",
	Long: `Run a stored payload through the stage that rejected it.

Whole datagrams (frame and panic failures) are parsed again with the
current decoders. Compressed spans are run through offset discovery. Record
failures are shown as hex.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlob(cmd, args[0], func(b storage.Blob) error {
			return replay(cmd, b)
		})
	},
}

func init() {
	rootCmd.AddCommand(blobsCmd)
	blobsCmd.AddCommand(blobsListCmd, blobsExportCmd, blobsReplayCmd)

	blobsCmd.PersistentFlags().String("blob-dir", "", "Diagnostics directory (default from config)")
	blobsListCmd.Flags().Int("limit", 100, "Maximum number of payloads to list (0 = all)")
	addFeedFlags(blobsReplayCmd)
}

func withBlobStore(cmd *cobra.Command, fn func(*storage.BlobStore) error) error {
	dir, _ := cmd.Flags().GetString("blob-dir")
	if dir == "" {
		dir = configFrom(cmd).Diagnostics.BlobDir
	}
	store, err := storage.OpenBlobStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func withBlob(cmd *cobra.Command, rawID string, fn func(storage.Blob) error) error {
	id, err := ksuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid blob id %q: %w", rawID, err)
	}
	return withBlobStore(cmd, func(store *storage.BlobStore) error {
		b, err := store.Get(id)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func replay(cmd *cobra.Command, b storage.Blob) error {
	out := cmd.OutOrStdout()
	switch parser.Stage(b.Stage) {
	case parser.StageFrame, parser.StagePanic:
		cfg := *configFrom(cmd)
		cfg.Feed.Family = b.Feed.String()
		if err := applyFlags(cmd, &cfg, nil); err != nil {
			return err
		}
		cfg.Output = config.DefaultConfig().Output
		cfg.Capture.Path = ""
		cfg.Diagnostics.Enabled = false
		cfg.Status.Enabled = false

		container, err := di.NewContainer(&cfg, out, loggerFrom(cmd))
		if err != nil {
			return err
		}
		defer container.Close()

		n := container.Parser().Parse(b.Payload)
		cmd.Printf("Replayed %d bytes as %s: %d lines, %d failures\n",
			len(b.Payload), b.Feed, n, container.Parser().Stats().Failures)
		return nil

	case parser.StageDecompress:
		c := codec.New(codec.Config{Logger: loggerFrom(cmd)})
		plain, err := c.Decompress(nil, b.Payload)
		if err != nil {
			cmd.Printf("Still undecodable after %d attempts\n", c.Stats().Attempts)
			return listener.HexDump(out, b.Payload)
		}
		st := c.Stats()
		cmd.Printf("Decompressed %d -> %d bytes at %s (%s)\n", len(b.Payload), len(plain), st.Locus, st.LastStep)
		return listener.HexDump(out, plain)

	default:
		cmd.Printf("%s failure: %s\n", b.Stage, b.Reason)
		return listener.HexDump(out, b.Payload)
	}
}
