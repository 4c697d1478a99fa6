package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// HashContent streams r through MD5 and returns the lowercase 32-hex digest
// used as DedupStore's content-identity key.
func HashContent(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %v", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes is the in-memory equivalent of HashContent for already-loaded data.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// GenerateSecureRandomString returns a random alphanumeric string of the given length,
// used to build collision-resistant on-disk filenames for stored uploads.
func GenerateSecureRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)

	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %v", err)
	}

	for i, b := range bytes {
		bytes[i] = charset[b%byte(len(charset))]
	}

	return string(bytes), nil
}
