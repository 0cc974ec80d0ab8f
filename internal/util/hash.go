package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256HexFromReader streams r through SHA-256 and returns the lowercase hex
// digest. Used to derive content hashes for uploaded documents.
func SHA256HexFromReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
