package normalize

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// ContentHash computes the hex-encoded SHA-256 of an in-memory file.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
