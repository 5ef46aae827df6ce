package blockchain

import (
	"encoding/hex"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// HashLength is the byte length of an identity hash.
const HashLength = 32

// Hash is a blake3 digest used as an identity for blocks and transactions.
// Hashes here are bookkeeping identities, not consensus security.
type Hash [HashLength]byte

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	enc := make([]byte, len(h[:])*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], h[:])
	return string(enc)
}

// IsZero reports whether the hash is the zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler so hashes serialize as hex
// strings in JSON snapshots.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	h.SetBytes(b)
	return nil
}

// hashFields computes the blake3 digest of the given fields joined by '|'.
func hashFields(fields ...string) (hash Hash) {
	sum := blake3.Sum256([]byte(strings.Join(fields, "|")))
	hash.SetBytes(sum[:])
	return hash
}

// formatAmount renders a float field for hashing with a stable representation.
func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
