package mapper

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is the external contract for encrypting/decrypting stored state
// bytes (spec §6), keyed by the CIPHER_KEY configuration value. The
// plaintext-in-store sequence is serialize -> compress -> encrypt -> store;
// read reverses it.
type Cipher interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// ChaCha20Poly1305Cipher implements Cipher with an AEAD construction from
// golang.org/x/crypto, a transitive dependency of both cdc-worker and
// go-core. Each call generates a fresh random nonce, prepended to the
// ciphertext.
type ChaCha20Poly1305Cipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewChaCha20Poly1305Cipher builds a Cipher from a 32-byte key. The key may
// be given raw or base64-encoded, per spec §6's CIPHER_KEY format.
func NewChaCha20Poly1305Cipher(key []byte) (*ChaCha20Poly1305Cipher, error) {
	key, err := decodeCipherKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("construct cipher: %w", err)
	}
	return &ChaCha20Poly1305Cipher{aead: aead}, nil
}

func (c *ChaCha20Poly1305Cipher) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

func (c *ChaCha20Poly1305Cipher) Decrypt(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// decodeCipherKey accepts either a raw 32-byte key or a base64-encoded one.
func decodeCipherKey(key []byte) ([]byte, error) {
	if len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(key)))
	n, err := base64.StdEncoding.Decode(decoded, key)
	if err != nil {
		return nil, fmt.Errorf("CIPHER_KEY is neither %d raw bytes nor valid base64: %w", chacha20poly1305.KeySize, err)
	}
	decoded = decoded[:n]
	if len(decoded) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("CIPHER_KEY must decode to %d bytes, got %d", chacha20poly1305.KeySize, len(decoded))
	}
	return decoded, nil
}
