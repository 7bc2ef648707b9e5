package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseChecksumFile reads the digest from a sha256sum style line
// ("<hex>  <name>") or a bare digest
func ParseChecksumFile(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty checksum file")
	}
	sum := strings.ToLower(fields[0])
	if len(sum) != sha256.Size*2 {
		return "", fmt.Errorf("invalid sha256 digest %q", fields[0])
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", fmt.Errorf("invalid sha256 digest %q: %w", fields[0], err)
	}
	return sum, nil
}
