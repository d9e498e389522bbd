// Package idgen allocates opaque, sortable identifiers for new records.
package idgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

const (
	FormatXID    = "xid"
	FormatUUIDv7 = "uuidv7"
)

var ErrGeneration = errors.New("id generation failed")

// Generator hands out identifiers that never repeat within the process, even
// when called from many goroutines at once.
type Generator interface {
	NewID() (string, error)
}

type GeneratorFunc func() (string, error)

func (f GeneratorFunc) NewID() (string, error) {
	return f()
}

// XID produces 20 character base32 ids ordered by creation second. The
// embedded counter keeps ids unique inside a second.
type XID struct{}

func (XID) NewID() (string, error) {
	id := xid.New()
	if id.IsNil() {
		return "", fmt.Errorf("%w: xid source returned nil id", ErrGeneration)
	}
	return id.String(), nil
}

// UUIDv7 produces time ordered UUIDs. The uuid package serializes calls so ids
// are monotonic within the process.
type UUIDv7 struct{}

func (UUIDv7) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return id.String(), nil
}

// New returns the generator for format ("xid" or "uuidv7"). An empty format
// selects XID.
func New(format string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXID:
		return XID{}, nil
	case FormatUUIDv7:
		return UUIDv7{}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", format)
	}
}
