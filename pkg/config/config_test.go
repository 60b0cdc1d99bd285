package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "fo", config.Feed.Family)
	assert.Equal(t, "233.1.2.5", config.Feed.MulticastIP)
	assert.Equal(t, 0, config.Feed.Port)
	assert.Equal(t, 65536, config.Feed.ReadBuffer)
	assert.Equal(t, OutputConsole, config.Output.Mode)
	assert.Equal(t, "127.0.0.1", config.Output.Socket.Bind)
	assert.Equal(t, 4096, config.Output.Socket.MaxQueue)
	assert.Equal(t, 16384, config.Output.Socket.BatchBytes)
	assert.Equal(t, "info", config.Logging.Level)
	assert.NoError(t, config.Validate())
}

func TestFeedPort(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultFOPort, config.FeedPort())

	config.Feed.Family = "cm"
	assert.Equal(t, DefaultCMPort, config.FeedPort())

	config.Feed.Port = 40000
	assert.Equal(t, 40000, config.FeedPort())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad family", func(c *Config) { c.Feed.Family = "eq" }, ErrInvalidFeed},
		{"unicast ip", func(c *Config) { c.Feed.MulticastIP = "10.0.0.1" }, ErrInvalidIP},
		{"garbage ip", func(c *Config) { c.Feed.MulticastIP = "nope" }, ErrInvalidIP},
		{"port too large", func(c *Config) { c.Feed.Port = 70000 }, ErrInvalidPort},
		{"bad mode", func(c *Config) { c.Output.Mode = "shm" }, ErrInvalidOutput},
		{"negative fsync", func(c *Config) { c.Capture.FsyncMillis = -1 }, ErrInvalidValue},
		{"socket without token", func(c *Config) { c.Output.Mode = OutputSocket }, ErrMissingToken},
		{"socket bad port", func(c *Config) {
			c.Output.Mode = OutputSocket
			c.Output.Socket.Token = "t"
			c.Output.Socket.Port = -1
		}, ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), tt.want)
		})
	}

	t.Run("cm upper case", func(t *testing.T) {
		config := DefaultConfig()
		config.Feed.Family = "CM"
		assert.NoError(t, config.Validate())
	})
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64)

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})
}

func sampleConfig() *Config {
	config := DefaultConfig()
	config.Feed.Family = "cm"
	config.Feed.Port = 34075
	config.Filter.Tokens = []uint32{35001, 35002}
	config.Filter.Enabled = []string{"7202", "OI"}
	config.Output.Mode = OutputSocket
	config.Output.Socket.Token = "secret"
	config.Capture.Path = "/var/lib/hermes/session.cap"
	config.Diagnostics.Enabled = true
	config.Logging.Level = "debug"
	return config
}

func TestLoadConfig(t *testing.T) {
	t.Run("yaml round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		expected := sampleConfig()

		require.NoError(t, SaveConfig(expected, configPath))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expected, loaded)
	})

	t.Run("toml round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		expected := sampleConfig()

		require.NoError(t, SaveConfig(expected, configPath))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expected, loaded)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("feed:\n  family: cm\n"), 0600))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "cm", loaded.Feed.Family)
		assert.Equal(t, DefaultMulticastIP, loaded.Feed.MulticastIP)
		assert.Equal(t, OutputConsole, loaded.Output.Mode)
	})

	t.Run("partial toml keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		data := "[output]\nmode = \"file\"\n\n[output.file]\nbase_dir = \"/srv/md\"\n"
		require.NoError(t, os.WriteFile(configPath, []byte(data), 0600))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, OutputFile, loaded.Output.Mode)
		assert.Equal(t, "/srv/md", loaded.Output.File.BaseDir)
		assert.Equal(t, 10000, loaded.Output.File.QueueSize)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()

	require.NoError(t, SaveConfig(config, configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := filepath.Join(tmpDir, "data")

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, config.Output.File.BaseDir)
	assert.Equal(t, filepath.Join(dataDir, "blobs"), config.Diagnostics.BlobDir)

	_, err = hex.DecodeString(config.Output.Socket.Token)
	assert.NoError(t, err)
	assert.Len(t, config.Output.Socket.Token, 32)
	assert.Len(t, config.Status.APIKey, 64)

	assert.True(t, ConfigExists(configPath))

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "hermes")
	assert.Contains(t, path, "config.yaml")
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingPath := filepath.Join(tmpDir, "exists.yaml")

	require.NoError(t, os.WriteFile(existingPath, []byte("test"), 0644))

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(filepath.Join(tmpDir, "does-not-exist.yaml")))
}

func TestConfigYAMLKeys(t *testing.T) {
	data, err := yaml.Marshal(sampleConfig())
	require.NoError(t, err)

	for _, key := range []string{"multicast_ip:", "market_all:", "batch_bytes:", "reject_busy:", "blob_dir:"} {
		assert.Contains(t, string(data), key)
	}
}

func TestSaveConfigErrorHandling(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	err := SaveConfig(DefaultConfig(), filepath.Join(blocker, "sub", "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
