package domain

import (
	"strings"
	"time"
)

// User is lazily created on the first observed bet for an address, or on API
// login. Addresses are stored normalized (lowercase) and unique.
type User struct {
	ID        string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeAddress lowercases an on-chain address so that lookups and the
// unique constraint agree regardless of the caller's casing.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
