package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/recurra/internal/tenant/domain"
	"golang.org/x/crypto/hkdf"
	"gorm.io/datatypes"
)

const configKeyInfo = "recurra/provider-config/v1"

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// ConfigCipher seals provider credentials with AES-256-GCM under a key
// derived from the operator secret with HKDF-SHA256.
type ConfigCipher struct {
	key []byte
}

func NewConfigCipher(secret string) *ConfigCipher {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &ConfigCipher{}
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(configKeyInfo)), key); err != nil {
		return &ConfigCipher{}
	}
	return &ConfigCipher{key: key}
}

func (c *ConfigCipher) Encrypt(config map[string]string) (datatypes.JSON, error) {
	if c == nil || len(c.key) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out, err := json.Marshal(encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, payload, nil)),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func (c *ConfigCipher) Decrypt(encrypted datatypes.JSON) (map[string]string, error) {
	if c == nil || len(c.key) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}

	var envelope encryptedPayload
	if err := json.Unmarshal(encrypted, &envelope); err != nil {
		return nil, domain.ErrInvalidConfig
	}
	if envelope.Version != 1 || envelope.Nonce == "" || envelope.Ciphertext == "" {
		return nil, domain.ErrInvalidConfig
	}

	nonce, err := base64.RawStdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, domain.ErrInvalidConfig
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	var config map[string]string
	if err := json.Unmarshal(plaintext, &config); err != nil {
		return nil, domain.ErrInvalidConfig
	}
	return config, nil
}

func (c *ConfigCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
