package sandbox

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// AuthConfig holds token related configuration
type AuthConfig struct {
	TokenExpiry string   `toml:"token_expiry"` // Token lifetime, e.g. "30m"
	KeySeed     string   `toml:"key_seed"`     // Base64 ed25519 seed; a random key is used when empty
	Issuers     []string `toml:"issuers"`      // App issuers allowed to mint tokens; empty allows any
}

// GetTokenExpiry returns the token expiry as time.Duration
func (a *AuthConfig) GetTokenExpiry() (time.Duration, error) {
	return ParseDuration(a.TokenExpiry)
}

// Config holds all configuration parameters for the sandbox flow host
type Config struct {
	// Configuration version
	FormatVersion string `toml:"format_version"`

	// Server configuration
	ServerHostName string `toml:"server_hostname"` // Hostname the server advertises
	ServerPort     string `toml:"server_port"`     // Port for the server
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS
	RequestTimeout string `toml:"request_timeout"` // Timeout for non-streaming requests
	FlowsDir       string `toml:"flows_dir"`       // Directory of *.js flows; overrides built-in flows
	AuditLog       string `toml:"audit_log"`       // Signed log of server side session outcomes; disabled when empty

	Auth AuthConfig `toml:"auth"`

	signingKey ed25519.PrivateKey
}

// DefaultConfig returns the configuration `flowctl sandbox serve` uses without a file.
func DefaultConfig() Config {
	return Config{
		FormatVersion:  ConfigFormatVersion,
		ServerHostName: "localhost",
		ServerPort:     "8190",
		HandleCORS:     true,
		RequestTimeout: "30s",
		Auth:           AuthConfig{TokenExpiry: "30m"},
	}
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - s: seconds
// - m: minutes
// - h: hours
// - d: days
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}

	switch unit {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

// Validate checks the configuration and prepares the signing key.
func (c *Config) Validate() error {
	if c.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	if c.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if c.ServerHostName == "" {
		c.ServerHostName = "localhost"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "30s"
	}
	if _, err := ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	if c.Auth.TokenExpiry == "" {
		return fmt.Errorf("auth.token_expiry is required")
	}
	if _, err := c.Auth.GetTokenExpiry(); err != nil {
		return fmt.Errorf("invalid auth.token_expiry: %v", err)
	}
	if c.FlowsDir != "" {
		if fi, err := os.Stat(c.FlowsDir); err != nil || !fi.IsDir() {
			return fmt.Errorf("flows_dir %q is not a directory", c.FlowsDir)
		}
	}

	if c.AuditLog != "" && c.Auth.KeySeed == "" {
		return fmt.Errorf("audit_log requires auth.key_seed so the log can be verified across restarts")
	}

	if c.Auth.KeySeed == "" {
		_, key, err := ed25519.GenerateKey(nil)
		if err != nil {
			return fmt.Errorf("error generating signing key: %v", err)
		}
		c.signingKey = key
		return nil
	}
	seed, err := base64.StdEncoding.DecodeString(c.Auth.KeySeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return fmt.Errorf("auth.key_seed must be %d base64 encoded bytes", ed25519.SeedSize)
	}
	c.signingKey = ed25519.NewKeyFromSeed(seed)
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.ServerPort
}

// URL returns the base URL clients use to reach the host.
func (c Config) URL() string {
	return "http://" + c.ServerHostName + ":" + c.ServerPort
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(filename string) (Config, error) {
	if filename == "" {
		return Config{}, fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %v", err)
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}
