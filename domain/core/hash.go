package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex digits
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Fingerprint identifies a reproducible model check: the same canonical
// specifications, family, draw count and seed give the same fingerprint.
type Fingerprint Hash

func (f Fingerprint) String() string { return Hash(f).String() }

// ComputeFingerprint hashes the inputs that determine a seeded check's output
func ComputeFingerprint(meanSpec, dispersionSpec, family string, draws int, seed int64) Fingerprint {
	var data strings.Builder
	for _, part := range []string{meanSpec, dispersionSpec, family, strconv.Itoa(draws), strconv.FormatInt(seed, 10)} {
		data.WriteString(part)
		data.WriteByte(0)
	}
	return Fingerprint(NewHash([]byte(data.String())))
}
