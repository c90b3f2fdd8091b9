package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes computes the SHA-256 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString computes the SHA-256 hash of a string and returns it as a hex string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ResourceDigest computes the BLAKE3 hash of a resource payload. Two
// resources with equal digests carry identical bytes.
func ResourceDigest(r Resource) string {
	h := blake3.Sum256(r.Data)
	return hex.EncodeToString(h[:])
}

// HashText computes the SHA-256 hash of the concatenated text of a tree.
// It is used to compare content across round trips regardless of markup.
func HashText(n Node) string {
	return HashString(TextContent(n))
}
