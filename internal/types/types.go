// README: Common value objects shared across modules.
package types

import (
	"crypto/rand"
	"encoding/hex"
)

type ID string

// NewID returns a random 32-char hex identifier.
func NewID() ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return ID(hex.EncodeToString(b[:]))
}

// Ptr returns nil for the empty ID.
func (id ID) Ptr() *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}

// FromPtr is the inverse of Ptr.
func FromPtr(s *string) *ID {
	if s == nil {
		return nil
	}
	id := ID(*s)
	return &id
}
