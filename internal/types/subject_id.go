package types

import (
	"crypto/sha256"
	"math/big"
	"strings"
)

const subjectIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
const subjectIDLen = 16

// NormalizeSubjectName strips and lowercases a raw tag value per invariant 2.
func NormalizeSubjectName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SubjectID deterministically derives a subject's id from its kind and name so that
// identical (kind, name) pairs collide on purpose across processes and DB rebuilds
// (see the "Subject id stability" design note).
func SubjectID(kind SubjectKind, name string) string {
	normalized := NormalizeSubjectName(name)
	sum := sha256.Sum256([]byte(string(kind) + ":" + normalized))
	return encodeBase36(sum[:], subjectIDLen)
}

// encodeBase36 reads data as one big-endian integer and renders its lowest-order length
// base36 digits, zero-padded, most significant first; denser than hex for a fixed-width
// content-derived id.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	mod := new(big.Int)
	chars := make([]byte, 0, length)
	for num.Sign() > 0 && len(chars) < length {
		num.DivMod(num, base, mod)
		chars = append(chars, subjectIDAlphabet[mod.Int64()])
	}
	for len(chars) < length {
		chars = append(chars, '0')
	}
	// reverse into most-significant-first order
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars)
}
