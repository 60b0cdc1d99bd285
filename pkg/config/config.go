/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMulticastIP = "233.1.2.5"
	DefaultFOPort      = 34330
	DefaultCMPort      = 34074
	DefaultReadBuffer  = 64 * 1024
)

// Output modes.
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputSocket  = "socket"
)

var (
	ErrInvalidFeed   = errors.New("config: feed family must be fo or cm")
	ErrInvalidOutput = errors.New("config: output mode must be console, file or socket")
	ErrInvalidPort   = errors.New("config: port out of range")
	ErrInvalidIP     = errors.New("config: invalid multicast address")
	ErrMissingToken  = errors.New("config: socket output requires a token")
	ErrInvalidValue  = errors.New("config: invalid value")
)

// Config represents the HermesPortal configuration
type Config struct {
	Feed        Feed        `yaml:"feed" toml:"feed"`
	Filter      Filter      `yaml:"filter" toml:"filter"`
	Output      Output      `yaml:"output" toml:"output"`
	Capture     Capture     `yaml:"capture" toml:"capture"`
	Diagnostics Diagnostics `yaml:"diagnostics" toml:"diagnostics"`
	Status      Status      `yaml:"status" toml:"status"`
	Logging     Logging     `yaml:"logging" toml:"logging"`
}

// Feed selects the multicast source
type Feed struct {
	Family      string `yaml:"family" toml:"family"`
	MulticastIP string `yaml:"multicast_ip" toml:"multicast_ip"`
	Port        int    `yaml:"port" toml:"port"` // 0 = family default
	Interface   string `yaml:"interface" toml:"interface"`
	ReadBuffer  int    `yaml:"read_buffer" toml:"read_buffer"`
}

// Filter selects instruments and message codes
type Filter struct {
	Tokens    []uint32 `yaml:"tokens,omitempty" toml:"tokens,omitempty"`
	Enabled   []string `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	MarketAll bool     `yaml:"market_all" toml:"market_all"`
}

// Output configures where decoded lines go
type Output struct {
	Mode   string       `yaml:"mode" toml:"mode"`
	Mirror bool         `yaml:"mirror" toml:"mirror"` // also print to the console
	File   FileOutput   `yaml:"file" toml:"file"`
	Socket SocketOutput `yaml:"socket" toml:"socket"`
}

type FileOutput struct {
	BaseDir   string `yaml:"base_dir" toml:"base_dir"`
	QueueSize int    `yaml:"queue_size" toml:"queue_size"`
}

type SocketOutput struct {
	Bind       string `yaml:"bind" toml:"bind"`
	Port       int    `yaml:"port" toml:"port"`
	Token      string `yaml:"token" toml:"token"`
	MaxQueue   int    `yaml:"max_queue" toml:"max_queue"`
	BatchBytes int    `yaml:"batch_bytes" toml:"batch_bytes"`
	RejectBusy bool   `yaml:"reject_busy" toml:"reject_busy"`
}

// Capture records every received datagram for offline decoding
type Capture struct {
	Path        string `yaml:"path" toml:"path"` // empty disables capture
	FsyncMillis int    `yaml:"fsync_millis" toml:"fsync_millis"`
}

// Diagnostics configures persistence of undecodable payloads
type Diagnostics struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	BlobDir   string `yaml:"blob_dir" toml:"blob_dir"`
	QueueSize int    `yaml:"queue_size" toml:"queue_size"`
}

// Status configures the HTTP status server
type Status struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Feed: Feed{
			Family:      "fo",
			MulticastIP: DefaultMulticastIP,
			ReadBuffer:  DefaultReadBuffer,
		},
		Output: Output{
			Mode: OutputConsole,
			File: FileOutput{
				BaseDir:   "./data",
				QueueSize: 10000,
			},
			Socket: SocketOutput{
				Bind:       "127.0.0.1",
				MaxQueue:   4096,
				BatchBytes: 16 * 1024,
			},
		},
		Capture: Capture{
			FsyncMillis: 1000,
		},
		Diagnostics: Diagnostics{
			BlobDir:   "./data/blobs",
			QueueSize: 256,
		},
		Status: Status{
			Addr: "127.0.0.1:9310",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// FeedPort returns the configured port or the family default.
func (c *Config) FeedPort() int {
	if c.Feed.Port != 0 {
		return c.Feed.Port
	}
	if strings.EqualFold(c.Feed.Family, "cm") {
		return DefaultCMPort
	}
	return DefaultFOPort
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Feed.Family) {
	case "fo", "cm":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFeed, c.Feed.Family)
	}
	if ip := net.ParseIP(c.Feed.MulticastIP); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return fmt.Errorf("%w: %q", ErrInvalidIP, c.Feed.MulticastIP)
	}
	if p := c.FeedPort(); p <= 0 || p > 65535 {
		return fmt.Errorf("%w: feed port %d", ErrInvalidPort, p)
	}
	if c.Capture.FsyncMillis < 0 {
		return fmt.Errorf("%w: capture fsync_millis %d", ErrInvalidValue, c.Capture.FsyncMillis)
	}
	switch c.Output.Mode {
	case OutputConsole, OutputFile:
	case OutputSocket:
		if c.Output.Socket.Token == "" {
			return ErrMissingToken
		}
		if p := c.Output.Socket.Port; p < 0 || p > 65535 {
			return fmt.Errorf("%w: socket port %d", ErrInvalidPort, p)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output.Mode)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from the specified path over the
// defaults. Files ending in .toml are read as TOML, everything else as YAML.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isTOML(configPath) {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a generated relay
// token and status API key.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Output.File.BaseDir = dataDir
		config.Diagnostics.BlobDir = filepath.Join(dataDir, "blobs")
	}

	token, err := GenerateSecureKey(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate socket token: %w", err)
	}
	config.Output.Socket.Token = token

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate status API key: %w", err)
	}
	config.Status.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./hermes.yaml"
	}
	return filepath.Join(homeDir, ".config", "hermes", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
