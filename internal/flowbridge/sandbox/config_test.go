package sandbox

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"45s", 45 * time.Second, false},
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"0s", 0, true},
		{"-5m", 0, true},
		{"10", 0, true},
		{"5w", 0, true},
		{"m", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	seed := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize))
	flowsDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "full",
			content: `format_version = "0.1.0"
server_hostname = "sandbox.local"
server_port = "9000"
handle_cors = false
request_timeout = "10s"
flows_dir = "` + filepath.ToSlash(flowsDir) + `"

[auth]
token_expiry = "1h"
key_seed = "` + seed + `"
issuers = ["acme", "globex"]
`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":9000", cfg.Addr())
				assert.Equal(t, "http://sandbox.local:9000", cfg.URL())
				assert.False(t, cfg.HandleCORS)
				assert.Equal(t, []string{"acme", "globex"}, cfg.Auth.Issuers)
				expiry, err := cfg.Auth.GetTokenExpiry()
				require.NoError(t, err)
				assert.Equal(t, time.Hour, expiry)
				assert.Equal(t, ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)), cfg.signingKey)
			},
		},
		{
			name:    "defaults fill missing keys",
			content: `server_port = "9001"`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "localhost", cfg.ServerHostName)
				assert.True(t, cfg.HandleCORS)
				assert.Equal(t, "30m", cfg.Auth.TokenExpiry)
				assert.Len(t, cfg.signingKey, ed25519.PrivateKeySize)
			},
		},
		{
			name:    "wrong format version",
			content: `format_version = "9.9.9"`,
			wantErr: "unsupported config file format version",
		},
		{
			name:    "bad expiry",
			content: "[auth]\ntoken_expiry = \"forever\"",
			wantErr: "invalid auth.token_expiry",
		},
		{
			name:    "bad key seed",
			content: "[auth]\nkey_seed = \"c2hvcnQ=\"",
			wantErr: "auth.key_seed",
		},
		{
			name:    "missing flows dir",
			content: `flows_dir = "/does/not/exist"`,
			wantErr: "is not a directory",
		},
		{
			name:    "not toml",
			content: `server_port = `,
			wantErr: "error parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sandbox.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := LoadConfig(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}

	_, err := LoadConfig("")
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestAuditLogRequiresKeySeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuditLog = filepath.Join(t.TempDir(), "audit.tlog")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.key_seed")

	cfg.Auth.KeySeed = base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize))
	assert.NoError(t, cfg.Validate())
}
