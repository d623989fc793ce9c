package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// GenerateRandomString returns a URL-safe, base64 encoded token built from
// n securely generated random bytes.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("random string size must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
