package auditlog

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

var snappyStreamHeader = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}

// Compress copies a plain log from r to w as a snappy framed stream.
func Compress(w io.Writer, r io.Reader) error {
	sw := snappy.NewBufferedWriter(w)
	if _, err := io.Copy(sw, r); err != nil {
		return fmt.Errorf("compressing audit log: %w", err)
	}
	return sw.Close()
}

// Verify checks the hash chain and every signature of the log in r, which may be plain or
// snappy framed, and returns the number of entries.
func Verify(r io.Reader, pub ed25519.PublicKey) (int, error) {
	return verify(r, pub, nil)
}

func verify(r io.Reader, pub ed25519.PublicKey, visit func(Entry)) (int, error) {
	if len(pub) != ed25519.PublicKeySize {
		return 0, fmt.Errorf("invalid ed25519 public key size: got %d", len(pub))
	}

	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(snappyStreamHeader)); bytes.Equal(head, snappyStreamHeader) {
		br = bufio.NewReader(snappy.NewReader(br))
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	expectedPrevHash := ""
	for scanner.Scan() {
		lineNum++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return lineNum - 1, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if entry.PrevHash != expectedPrevHash {
			return lineNum - 1, fmt.Errorf("line %d: prevHash mismatch", lineNum)
		}
		hash, err := entryHash(entry.Payload, entry.PrevHash)
		if err != nil {
			return lineNum - 1, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if entry.Hash != hash {
			return lineNum - 1, fmt.Errorf("line %d: hash mismatch", lineNum)
		}
		signature, err := base64.StdEncoding.DecodeString(entry.Signature)
		if err != nil {
			return lineNum - 1, fmt.Errorf("line %d: invalid base64 signature: %w", lineNum, err)
		}
		if !ed25519.Verify(pub, []byte(entry.Hash), signature) {
			return lineNum - 1, fmt.Errorf("line %d: signature verification failed", lineNum)
		}
		if visit != nil {
			visit(entry)
		}
		expectedPrevHash = entry.Hash
	}
	if err := scanner.Err(); err != nil {
		return lineNum, fmt.Errorf("failed to read stream: %w", err)
	}
	return lineNum, nil
}
