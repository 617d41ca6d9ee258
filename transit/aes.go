package transit

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-mailsync/pkg/types"
)

const (
	aesKeySize = 32
	aesPrefix  = "v1:"
)

// AESCipher encrypts with AES-256-GCM using a keyring of base64 encoded
// keys. Ciphertexts carry a "v1:" prefix.
type AESCipher struct {
	keys map[string][]byte
}

var _ Cipher = (*AESCipher)(nil)

// NewAESCipher decodes the keyring. Every key must decode to 32 bytes.
func NewAESCipher(keys map[string]string) (*AESCipher, error) {
	ring := make(map[string][]byte, len(keys))
	for name, encoded := range keys {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("transit: decode key %q: %w", name, err)
		}
		if len(raw) != aesKeySize {
			return nil, fmt.Errorf("transit: key %q must be %d bytes", name, aesKeySize)
		}
		ring[name] = raw
	}
	return &AESCipher{keys: ring}, nil
}

func (c *AESCipher) Encrypt(_ context.Context, plaintext, key string) Result {
	if plaintext == "" {
		return empty()
	}
	gcm, err := c.gcm(key)
	if err != nil {
		return failed(err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return failed(types.NewTransientError(err, "transit: nonce"))
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return ok(aesPrefix + base64.StdEncoding.EncodeToString(sealed))
}

func (c *AESCipher) Decrypt(_ context.Context, ciphertext, key string) Result {
	if ciphertext == "" {
		return empty()
	}
	if !strings.HasPrefix(ciphertext, aesPrefix) {
		return failed(fmt.Errorf("transit: unsupported ciphertext version"))
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, aesPrefix))
	if err != nil {
		return failed(fmt.Errorf("transit: decode ciphertext: %w", err))
	}
	gcm, err := c.gcm(key)
	if err != nil {
		return failed(err)
	}
	if len(raw) < gcm.NonceSize() {
		return failed(fmt.Errorf("transit: ciphertext too short"))
	}
	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return failed(fmt.Errorf("transit: decrypt: %w", err))
	}
	return ok(string(plaintext))
}

func (c *AESCipher) EncryptBatch(ctx context.Context, values []string, key string) []Result {
	return mapResults(values, func(v string) Result { return c.Encrypt(ctx, v, key) })
}

func (c *AESCipher) DecryptBatch(ctx context.Context, values []string, key string) []Result {
	return mapResults(values, func(v string) Result { return c.Decrypt(ctx, v, key) })
}

func (c *AESCipher) gcm(name string) (cipher.AEAD, error) {
	if name == "" {
		return nil, ErrKeyRequired
	}
	key, found := c.keys[name]
	if !found {
		return nil, fmt.Errorf("transit: unknown key %q", name)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("transit: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
