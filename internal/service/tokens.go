package service

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// newToken returns prefix followed by 32 random hex characters.
func newToken(prefix string) string {
	id := uuid.New()
	return prefix + hex.EncodeToString(id[:])
}
