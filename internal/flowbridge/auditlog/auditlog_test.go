package auditlog

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}

func writeLog(t *testing.T, key ed25519.PrivateKey, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.tlog")
	w, err := Open(path, key)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	for i := 0; i < n; i++ {
		require.NoError(t, w.Record(map[string]any{
			"sessionId": "s-" + string(rune('a'+i)),
			"result":    "success",
			"attempt":   i,
			"meta":      map[string]any{"z": 1, "a": []any{true, nil}},
		}))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	return path
}

func TestRecordAndVerify(t *testing.T) {
	key := newKey(t)
	path := writeLog(t, key, 3)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n, err := Verify(f, key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"recordedAt":"2026-05-01T09:00:00Z"`)
}

func TestVerifyDetectsTampering(t *testing.T) {
	key := newKey(t)
	path := writeLog(t, key, 3)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	tests := []struct {
		name    string
		log     string
		key     ed25519.PublicKey
		wantErr string
	}{
		{
			name:    "edited payload",
			log:     strings.Replace(string(data), `"result":"success"`, `"result":"failure"`, 1),
			key:     key.Public().(ed25519.PublicKey),
			wantErr: "line 1: hash mismatch",
		},
		{
			name:    "dropped entry",
			log:     lines[0] + "\n" + lines[2] + "\n",
			key:     key.Public().(ed25519.PublicKey),
			wantErr: "line 2: prevHash mismatch",
		},
		{
			name:    "wrong key",
			log:     string(data),
			key:     newKey(t).Public().(ed25519.PublicKey),
			wantErr: "line 1: signature verification failed",
		},
		{
			name:    "garbage",
			log:     "not json\n",
			key:     key.Public().(ed25519.PublicKey),
			wantErr: "line 1: invalid JSON",
		},
		{
			name:    "short key",
			log:     string(data),
			key:     ed25519.PublicKey{1, 2, 3},
			wantErr: "invalid ed25519 public key size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(strings.NewReader(tt.log), tt.key)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReopenContinuesChain(t *testing.T) {
	key := newKey(t)
	path := writeLog(t, key, 2)

	w, err := Open(path, key)
	require.NoError(t, err)
	require.NoError(t, w.Record(map[string]any{"sessionId": "s-late"}))

	var buf bytes.Buffer
	require.NoError(t, w.Export(&buf))
	require.NoError(t, w.Close())
	assert.Error(t, w.Record(map[string]any{}))

	// exported logs are snappy framed and still verify
	assert.True(t, bytes.HasPrefix(buf.Bytes(), snappyStreamHeader))
	n, err := Verify(&buf, key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Open(path, newKey(t))
	assert.Error(t, err)
}

func TestOpenRejectsBadKey(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.tlog"), ed25519.PrivateKey{1})
	assert.Error(t, err)
}
