package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// ErrDecode is returned for any ciphertext the codec cannot open: wrong
// encoding, truncated data, foreign key, or a failed authentication tag.
// Callers treat it as "message unreadable" and degrade, never crash.
var ErrDecode = errors.New("crypto: ciphertext unreadable")

// Codec encrypts message bodies before they are persisted and decrypts them
// on the way out. AES-256-GCM with a key derived from the server-held
// secret; a fresh nonce per message is prepended to the ciphertext.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(secret string) (*Codec, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead}, nil
}

// Encode encrypts plaintext and returns base64(nonce || ciphertext).
func (c *Codec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Decode(Encode(x)) == x for all x.
func (c *Codec) Decode(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecode
	}

	if len(raw) < c.aead.NonceSize() {
		return "", ErrDecode
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecode
	}

	return string(plaintext), nil
}
