// Package auditlog records session outcomes in a tamper-evident log. Every entry carries the
// hash of its predecessor and an Ed25519 signature over its canonical JSON form, so removing,
// reordering or editing entries is detected by Verify.
package auditlog

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/anand-gl/jsoncanonicalizer"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one signed line of the log.
type Entry struct {
	Payload   map[string]any `json:"payload"`
	PrevHash  string         `json:"prevHash"`
	Hash      string         `json:"hash"`
	Signature string         `json:"signature"`
}

// Writer appends signed entries to a log file.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	prevHash string
	key      ed25519.PrivateKey
	now      func() time.Time
	closed   bool
}

// Open opens or creates the log at path. Appending to an existing log continues its hash chain,
// so the file must have been written with the same key.
func Open(path string, key ed25519.PrivateKey) (*Writer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key: must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	prevHash, err := lastHash(path, key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Writer{file: f, path: path, prevHash: prevHash, key: key, now: time.Now}, nil
}

func lastHash(path string, pub ed25519.PublicKey) (string, error) {
	r, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer r.Close()
	var last string
	if _, err := verify(r, pub, func(e Entry) { last = e.Hash }); err != nil {
		return "", fmt.Errorf("existing audit log %s: %w", path, err)
	}
	return last, nil
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string { return w.path }

// Record appends payload, stamped with the current time under "recordedAt".
func (w *Writer) Record(payload map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("audit log is closed")
	}

	entry := Entry{Payload: maps.Clone(payload), PrevHash: w.prevHash}
	if entry.Payload == nil {
		entry.Payload = map[string]any{}
	}
	entry.Payload["recordedAt"] = w.now().UTC().Format(time.RFC3339Nano)

	// round trip through JSON so the payload hashes the same way it verifies
	raw, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	entry.Payload = nil
	if err := json.Unmarshal(raw, &entry.Payload); err != nil {
		return fmt.Errorf("failed to normalize payload: %w", err)
	}

	hash, err := entryHash(entry.Payload, entry.PrevHash)
	if err != nil {
		return err
	}
	entry.Hash = hash
	entry.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(w.key, []byte(entry.Hash)))

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	w.prevHash = entry.Hash
	return nil
}

// Export writes the log written so far to out as a snappy framed stream.
func (w *Writer) Export(out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return err
	}
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Compress(out, f)
}

// Close closes the log file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// entryHash is the hex SHA-256 of the canonical JSON of payload and prevHash.
func entryHash(payload map[string]any, prevHash string) (string, error) {
	data, err := json.Marshal(struct {
		Payload  map[string]any `json:"payload"`
		PrevHash string         `json:"prevHash"`
	}{payload, prevHash})
	if err != nil {
		return "", fmt.Errorf("failed to marshal hash input: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize hash input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
