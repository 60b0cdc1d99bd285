package listener

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLocal(t *testing.T, config Config) *Listener {
	t.Helper()
	if config.Group == "" {
		config.Group = "239.255.42.99"
	}
	l, err := Open(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func send(t *testing.T, l *Listener, payloads ...[]byte) {
	t.Helper()
	port := l.Addr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer conn.Close()
	for _, p := range payloads {
		_, err := conn.Write(p)
		require.NoError(t, err)
	}
}

func TestOpen_InvalidGroup(t *testing.T) {
	for _, g := range []string{"", "nope", "::1"} {
		_, err := Open(context.Background(), Config{Group: g})
		assert.ErrorIs(t, err, ErrInvalidGroup, g)
	}
}

func TestRun_DeliversDatagrams(t *testing.T) {
	l := openLocal(t, Config{})

	var (
		mu  sync.Mutex
		got [][]byte
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(pkt []byte) {
			mu.Lock()
			got = append(got, append([]byte(nil), pkt...))
			mu.Unlock()
		})
	}()

	send(t, l, []byte("one"), []byte("two"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, got)
	assert.Equal(t, Stats{Packets: 2, Bytes: 6}, l.Stats())
}

func TestRun_DumpFirstPacket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first.bin")
	var hex bytes.Buffer
	l := openLocal(t, Config{DumpPath: path, DumpHex: true, HexOut: &hex})

	done := make(chan error, 1)
	go func() {
		done <- l.Run(context.Background(), func([]byte) {
			t.Error("handler must not run in dump mode")
		})
	}()

	payload := []byte{0x00, 0x01, 0xAB, 0xFF}
	send(t, l, payload)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after dump")
	}

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
	assert.Equal(t, "00 01 ab ff\n", hex.String())
}

func TestHexDump(t *testing.T) {
	t.Run("wraps at sixteen", func(t *testing.T) {
		b := make([]byte, 18)
		for i := range b {
			b[i] = byte(i)
		}
		var out bytes.Buffer
		require.NoError(t, HexDump(&out, b))
		assert.Equal(t,
			"00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n10 11\n",
			out.String())
	})

	t.Run("caps at 256 bytes", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, HexDump(&out, make([]byte, 1000)))
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		assert.Len(t, lines, 16)
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, HexDump(&out, nil))
		assert.Empty(t, out.String())
	})
}
