package types

import (
	"strings"

	"github.com/google/uuid"
)

// UUID is a 16-byte big-endian identifier, as Core Storage stores it on disk.
type UUID [16]byte

// String renders the UUID in standard hyphenated form.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// IsZero reports whether every byte of the UUID is zero.
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// ParseUUID normalizes a hyphenated ASCII UUID string (as embedded in plist values) into
// its 16-byte big-endian representation.
func ParseUUID(s string) (UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return UUID{}, Errorf(ErrUnsupportedValue, "ParseUUID", "invalid uuid string %q: %v", s, err)
	}
	return UUID(parsed), nil
}
