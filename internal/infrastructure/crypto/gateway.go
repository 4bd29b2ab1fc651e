package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Gateway encrypts and decrypts payloads tagged with a sensitivity level.
// The rest of the system treats it as a black box: a ciphertext produced at
// one level never decrypts at another.
type Gateway interface {
	Encrypt(ctx context.Context, payload []byte, level values.SensitivityLevel) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte, level values.SensitivityLevel) ([]byte, error)
}

// aesGateway implements Gateway with AES-256-GCM and a key derived per
// sensitivity level from the configured master key material.
type aesGateway struct {
	keys   map[values.SensitivityLevel][]byte
	logger *zap.Logger
}

// NewAESGateway creates a gateway deriving one AES-256 key per level
func NewAESGateway(masterKey string, logger *zap.Logger) (Gateway, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if len(masterKey) < 16 {
		return nil, fmt.Errorf("master key must be at least 16 bytes")
	}

	keys := make(map[values.SensitivityLevel][]byte, 3)
	for _, level := range []values.SensitivityLevel{
		values.SensitivityStandard,
		values.SensitivityHigh,
		values.SensitivityMaximum,
	} {
		derived := sha256.Sum256([]byte(masterKey + ":" + level.String()))
		keys[level] = derived[:]
	}

	return &aesGateway{keys: keys, logger: logger}, nil
}

// Encrypt seals the payload with the key for the given level. The nonce is
// prepended to the returned ciphertext.
func (g *aesGateway) Encrypt(ctx context.Context, payload []byte, level values.SensitivityLevel) ([]byte, error) {
	aead, err := g.aead(level)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		g.logger.Error("nonce generation failed", zap.Error(err))
		return nil, errors.NewEncryptionError("failed to generate nonce").WithCause(err)
	}

	return aead.Seal(nonce, nonce, payload, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt at the same level. Any
// tamper or key mismatch fails authentication and is reported as an
// encryption failure.
func (g *aesGateway) Decrypt(ctx context.Context, ciphertext []byte, level values.SensitivityLevel) ([]byte, error) {
	aead, err := g.aead(level)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.NewEncryptionError("ciphertext shorter than nonce")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	payload, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		g.logger.Warn("decryption failed",
			zap.String("level", level.String()),
			zap.Error(err))
		return nil, errors.NewEncryptionError("payload failed authentication").WithCause(err)
	}

	return payload, nil
}

func (g *aesGateway) aead(level values.SensitivityLevel) (cipher.AEAD, error) {
	key, ok := g.keys[level]
	if !ok {
		return nil, errors.NewEncryptionError(
			fmt.Sprintf("no key for sensitivity level %s", level))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.NewEncryptionError("cipher initialization failed").WithCause(err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.NewEncryptionError("gcm initialization failed").WithCause(err)
	}

	return aead, nil
}
