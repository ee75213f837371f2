package vault

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Token layout:
//
//	version(1) | length(4, big endian) | nonce(24) | ciphertext+tag(length)
//
// The version and length bytes are authenticated as additional data
// together with Magic.

// Seal encrypts plaintext under key. Every call draws a fresh nonce, so
// sealing the same plaintext twice yields different tokens.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randBytes(NonceLen)
	if err != nil {
		return nil, err
	}

	ctLen := len(plaintext) + aead.Overhead()
	token := make([]byte, headerLen+NonceLen, headerLen+NonceLen+ctLen)
	token[0] = Version
	binary.BigEndian.PutUint32(token[1:headerLen], uint32(ctLen))
	copy(token[headerLen:], nonce)

	return aead.Seal(token, nonce, plaintext, additionalData(token[:headerLen])), nil
}

// Open authenticates and decrypts token. It returns ErrMalformedToken when
// the token is not structurally valid and ErrAuthFailed when the key is
// wrong or any byte was altered.
func Open(key, token []byte) ([]byte, error) {
	if len(token) < headerLen+NonceLen+chacha20poly1305.Overhead {
		return nil, errors.Wrapf(ErrMalformedToken, "token too short (%d bytes)", len(token))
	}
	if token[0] != Version {
		return nil, errors.Wrapf(ErrMalformedToken, "unknown token version %d", token[0])
	}
	ctLen := binary.BigEndian.Uint32(token[1:headerLen])
	body := token[headerLen+NonceLen:]
	if uint64(ctLen) != uint64(len(body)) {
		return nil, errors.Wrapf(ErrMalformedToken, "declared length %d, have %d", ctLen, len(body))
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := token[headerLen : headerLen+NonceLen]
	pt, err := aead.Open(nil, nonce, body, additionalData(token[:headerLen]))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

func additionalData(header []byte) []byte {
	aad := make([]byte, 0, len(Magic)+len(header))
	aad = append(aad, Magic...)
	return append(aad, header...)
}

// newAEAD expands the derived key into a sealing subkey, so the KDF output
// itself never keys the cipher directly.
func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, errors.Errorf("invalid key length %d; want %d", len(key), KeyLen)
	}
	sub := make([]byte, chacha20poly1305.KeySize)
	defer memguard.WipeBytes(sub)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(sealInfo)), sub); err != nil {
		return nil, errors.Wrap(err, "cannot expand seal key")
	}
	aead, err := chacha20poly1305.NewX(sub)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create xchacha20-poly1305 cipher")
	}
	return aead, nil
}
