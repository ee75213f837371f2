package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 work factor used when none is configured.
const DefaultIterations = 200000

// Derive turns a master secret and salt into a KeyLen-byte key with
// PBKDF2-HMAC-SHA256. It is deterministic and accepts an empty secret.
// iterations <= 0 selects DefaultIterations.
func Derive(secret, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(secret, salt, iterations, KeyLen, sha256.New)
}

// NewSalt returns SaltLen fresh random bytes.
func NewSalt() ([]byte, error) {
	return randBytes(SaltLen)
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(err, "cannot read random bytes")
	}
	return b, nil
}
