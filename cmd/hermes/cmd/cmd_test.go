package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/hermesportal/pkg/capture"
	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/config"
	"github.com/ssargent/hermesportal/pkg/market"
	"github.com/ssargent/hermesportal/pkg/storage"
)

// resetFlags undoes flag state left behind by an earlier Execute.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermes.yaml")
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func oiPacket(t *testing.T, recs ...[3]uint32) []byte {
	t.Helper()
	msg := make([]byte, 42)
	binary.BigEndian.PutUint16(msg[10:], market.CodeOpenInterest)
	binary.BigEndian.PutUint16(msg[40:], uint16(len(recs)))
	for _, r := range recs {
		b := make([]byte, market.OpenInterestSize)
		binary.BigEndian.PutUint32(b, r[0])
		binary.BigEndian.PutUint16(b[4:], uint16(r[1]))
		binary.BigEndian.PutUint32(b[14:], r[2])
		msg = append(msg, b...)
	}
	z, err := codec.Compress(codec.VariantLZO1Z, msg)
	require.NoError(t, err)

	pkt := []byte{0, 0, 0, 1}
	pkt = binary.BigEndian.AppendUint16(pkt, uint16(len(z)))
	return append(pkt, z...)
}

func TestSchemaCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "schema", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[SCHEMA] 7202: ")
	assert.Contains(t, out, "[SCHEMA] 7208: ")
	assert.NotContains(t, out, "[SCHEMA] CT: ")

	out, err = execute(t, "schema", "--config", cfgPath, "--inst", "cm", "--enable", "7202")
	require.NoError(t, err)
	assert.Contains(t, out, "[SCHEMA] CT: ")
	assert.Contains(t, out, "[SCHEMA] PN: ")
	assert.NotContains(t, out, "[SCHEMA] 7208: ")
}

func TestDecodeCommand(t *testing.T) {
	cfgPath := writeConfig(t)
	pktPath := filepath.Join(t.TempDir(), "first.bin")
	require.NoError(t, os.WriteFile(pktPath, oiPacket(t, [3]uint32{100, 1, 10}, [3]uint32{200, 2, 20}), 0600))

	out, err := execute(t, "decode", "--config", cfgPath, "--tokens", "100", pktPath)
	require.NoError(t, err)
	assert.Contains(t, out, "100,7202,1,10\n")
	assert.NotContains(t, out, "200,7202")

	out, err = execute(t, "decode", "--config", cfgPath, pktPath)
	require.NoError(t, err)
	assert.Contains(t, out, "100,7202,1,10\n")
	assert.Contains(t, out, "200,7202,2,20\n")

	_, err = execute(t, "decode", "--config", cfgPath, filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	cfgPath := writeConfig(t)
	target := filepath.Join(t.TempDir(), "new", "hermes.toml")

	out, err := execute(t, "init", "--config", cfgPath, "--path", target, "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "Relay token:")

	loaded, err := config.LoadConfig(target)
	require.NoError(t, err)
	assert.NotEmpty(t, loaded.Output.Socket.Token)

	_, err = execute(t, "init", "--config", cfgPath, "--path", target)
	assert.Error(t, err)

	_, err = execute(t, "init", "--config", cfgPath, "--path", target, "--force")
	assert.NoError(t, err)
}

func TestBlobsCommands(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := filepath.Join(t.TempDir(), "blobs")
	pkt := oiPacket(t, [3]uint32{100, 1, 10})

	store, err := storage.OpenBlobStore(dir)
	require.NoError(t, err)
	id, err := store.Put(storage.Blob{Feed: market.FeedFO, Stage: "frame", Reason: "test", Payload: pkt})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "blobs", "list", "--config", cfgPath, "--blob-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "frame")

	exported := filepath.Join(t.TempDir(), "blob.bin")
	_, err = execute(t, "blobs", "export", id.String(), exported, "--config", cfgPath, "--blob-dir", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, pkt, data)

	out, err = execute(t, "blobs", "replay", id.String(), "--config", cfgPath, "--blob-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "100,7202,1,10\n")
	assert.Contains(t, out, "1 lines")

	_, err = execute(t, "blobs", "replay", "not-an-id", "--config", cfgPath, "--blob-dir", dir)
	assert.Error(t, err)
}

func TestBlobsReplayDecompressStage(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := filepath.Join(t.TempDir(), "blobs")

	plain := []byte("hello hello hello hello")
	z, err := codec.Compress(codec.VariantZlib, plain)
	require.NoError(t, err)

	store, err := storage.OpenBlobStore(dir)
	require.NoError(t, err)
	id, err := store.Put(storage.Blob{Feed: market.FeedCM, Stage: "decompress", Payload: append([]byte{0xFF}, z...)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "blobs", "replay", id.String(), "--config", cfgPath, "--blob-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "-> 23 bytes at zlib@1")
	assert.Contains(t, out, "68 65 6c 6c 6f")
}

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	addFeedFlags(c)
	addOutputFlags(c)
	c.Flags().Int("mcast-port", 0, "")
	c.Flags().String("status-addr", "", "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestApplyFlags(t *testing.T) {
	c := newFlagCommand(t,
		"--inst", "cm", "--enable", "7202,CT", "--market", "all",
		"--out", "socket", "--socket-token", "tok", "--socket-port", "9100",
		"--mcast-port", "40000", "--status-addr", ":9310", "--debug")
	cfg := config.DefaultConfig()

	require.NoError(t, applyFlags(c, cfg, []string{"1, 2,x"}))
	assert.Equal(t, "cm", cfg.Feed.Family)
	assert.Equal(t, 40000, cfg.Feed.Port)
	assert.Equal(t, []string{"7202,CT"}, cfg.Filter.Enabled)
	assert.True(t, cfg.Filter.MarketAll)
	assert.Equal(t, config.OutputSocket, cfg.Output.Mode)
	assert.Equal(t, "tok", cfg.Output.Socket.Token)
	assert.Equal(t, 9100, cfg.Output.Socket.Port)
	assert.True(t, cfg.Output.Mirror)
	assert.True(t, cfg.Status.Enabled)
	assert.Equal(t, ":9310", cfg.Status.Addr)
	assert.Equal(t, []uint32{1, 2}, cfg.Filter.Tokens)
	assert.NoError(t, cfg.Validate())
}

func TestApplyFlags_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.ErrorIs(t, applyFlags(newFlagCommand(t, "--mcast-port", "0"), cfg, nil), config.ErrInvalidPort)
	assert.Error(t, applyFlags(newFlagCommand(t), cfg, []string{"abc,def"}))
}

func TestApplyFlags_UnsetFlagsKeepConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Feed.Family = "cm"
	cfg.Output.Socket.MaxQueue = 77

	require.NoError(t, applyFlags(newFlagCommand(t), cfg, nil))
	assert.Equal(t, "cm", cfg.Feed.Family)
	assert.Equal(t, 77, cfg.Output.Socket.MaxQueue)
	assert.False(t, cfg.Output.Mirror)
}

func TestDecodeCommand_FromCapture(t *testing.T) {
	cfgPath := writeConfig(t)
	capPath := filepath.Join(t.TempDir(), "session.cap")

	w, err := capture.NewWriter(capture.WriterConfig{Path: capPath})
	require.NoError(t, err)
	_, err = w.Append(time.Now(), oiPacket(t, [3]uint32{1, 1, 11}))
	require.NoError(t, err)
	_, err = w.Append(time.Now(), oiPacket(t, [3]uint32{2, 1, 22}))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := execute(t, "decode", "--config", cfgPath, "--from-capture", capPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1,7202,1,11\n")
	assert.Contains(t, out, "2,7202,1,22\n")
}
