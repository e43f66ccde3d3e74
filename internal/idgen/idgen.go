// Package idgen generates opaque unique identifiers for graph entities.
//
// IDs are hash-based rather than sequential: a SHA-256 over the entity's
// salient content plus a nanosecond timestamp and a random nonce, encoded
// base36 for density. A collision surfaces as CONFLICT at the store's
// unique-constraint boundary.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultLength is the number of base36 characters after the prefix.
// 8 chars ≈ 41 bits, comfortably collision-free at this system's scale.
const DefaultLength = 8

// EncodeBase36 converts a byte slice to a base36 string of the given length,
// zero-padded on the left and truncated to the least significant digits.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var b strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		b.WriteByte(chars[i])
	}

	s := b.String()
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}

// New generates an ID with the given prefix, e.g. "cmp-4k2j9x0q".
// The content parts participate in the hash so IDs are stable-looking but
// opaque; the timestamp and random nonce make them unique.
func New(prefix string, parts ...string) string {
	var nonce [8]byte
	_, _ = rand.Read(nonce[:])

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
	h.Write(ts[:])
	h.Write(nonce[:])

	sum := h.Sum(nil)
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(sum[:6], DefaultLength))
}

// Prefixes for each entity family.
const (
	PrefixComponent    = "cmp"
	PrefixRelationship = "rel"
	PrefixTask         = "task"
	PrefixComment      = "note"
	PrefixChange       = "chg"
	PrefixSnapshot     = "snap"
	PrefixCommand      = "cmd"
)
