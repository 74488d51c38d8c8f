// Package uuid issues session identities. Identities are UUIDv7 so that they sort by
// creation time in logs and metrics.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

// Nil is the zero UUID.
var Nil = uuid.Nil

// New returns a new UUIDv7. It panics if the random source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// NewRandom returns a new UUIDv7 and any error from the random source.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether id is version 7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// CreatedAt returns the millisecond timestamp embedded in a UUIDv7.
func CreatedAt(id UUID) time.Time {
	ms := binary.BigEndian.Uint64(id[0:8]) >> 16
	return time.UnixMilli(int64(ms))
}
