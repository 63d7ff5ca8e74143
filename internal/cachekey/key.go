// Package cachekey derives content-addressed keys for compiled units.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Digest is a fixed 256-bit hash.
type Digest [32]byte

// Zero reports whether d was never computed.
func (d Digest) Zero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short is the first 12 hex characters, enough to name build directories.
func (d Digest) Short() string {
	return d.String()[:12]
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("cachekey: %w", err)
	}
	if len(raw) != len(d) {
		return d, fmt.Errorf("cachekey: %q has %d bytes, want %d", s, len(raw), len(d))
	}
	copy(d[:], raw)
	return d, nil
}

// Sum hashes b.
func Sum(b []byte) Digest {
	return sha256.Sum256(b)
}

// Combine builds an aggregate hash: H(content || part1 || part2 ...).
// The order of parts must be deterministic.
func Combine(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, p := range parts {
		_, _ = h.Write(p[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Unit is the key of one compiled unit. Text fields are NFC-normalised and
// length-prefixed so that equal-looking names hash alike and field
// boundaries cannot shift.
func Unit(app, unit, optimization string, source []byte) Digest {
	h := sha256.New()
	for _, s := range []string{app, unit, optimization} {
		writeField(h, norm.NFC.Bytes([]byte(s)))
	}
	writeField(h, norm.NFC.Bytes(source))
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

type writer interface {
	Write(p []byte) (int, error)
}

func writeField(w writer, b []byte) {
	var n [8]byte
	l := uint64(len(b))
	for i := range n {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = w.Write(n[:])
	_, _ = w.Write(b)
}
