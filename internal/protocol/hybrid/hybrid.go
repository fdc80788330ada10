package hybrid

import (
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"time"

	"securechat/internal/crypto"
	"securechat/internal/domain"
)

const (
	Version     = 1
	AlgorithmID = "RSA-OAEP-256+A256GCM"
)

// Cipher implements domain.HybridCipher.
type Cipher struct {
	chunkSize int
	now       func() time.Time
}

// New returns a Cipher. chunkSize caps each OAEP wrap; 0 uses the largest
// size the recipient key allows.
func New(chunkSize int) *Cipher {
	return &Cipher{chunkSize: chunkSize, now: time.Now}
}

// Encrypt seals plaintext for recipientPublicKey (PKIX DER).
func (c *Cipher) Encrypt(plaintext, recipientPublicKey []byte, ephemeral bool) (domain.MessageEnvelope, error) {
	if len(plaintext) == 0 {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: empty plaintext", domain.ErrEncryptionFailed)
	}
	pub, err := crypto.ParsePublicKey(recipientPublicKey)
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}

	contentKey, err := crypto.RandomBytes(crypto.KeyBytes)
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}
	defer crypto.Wipe(contentKey)
	iv, err := crypto.RandomBytes(crypto.NonceBytes)
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}

	env := domain.MessageEnvelope{
		Version:     Version,
		AlgorithmID: AlgorithmID,
		IV:          iv,
		Timestamp:   c.now().UnixMilli(),
		Ephemeral:   ephemeral,
	}
	env.Content, err = crypto.SealWithNonce(contentKey, iv, plaintext, header(env))
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}
	env.WrappedKey, err = crypto.WrapChunks(pub, contentKey, c.chunkSize)
	if err != nil {
		return domain.MessageEnvelope{}, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}
	return env, nil
}

// Decrypt opens env with privateKey.
func (c *Cipher) Decrypt(env domain.MessageEnvelope, privateKey *rsa.PrivateKey) ([]byte, error) {
	if privateKey == nil || env.Version != Version || env.AlgorithmID != AlgorithmID ||
		len(env.WrappedKey) == 0 || len(env.IV) != crypto.NonceBytes {
		return nil, domain.ErrDecryptionFailed
	}
	contentKey, err := crypto.UnwrapChunks(privateKey, env.WrappedKey)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	defer crypto.Wipe(contentKey)
	if len(contentKey) != crypto.KeyBytes {
		return nil, domain.ErrDecryptionFailed
	}
	pt, err := crypto.Open(contentKey, env.IV, env.Content, header(env))
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return pt, nil
}

// header is the associated data: version | alg len | alg | iv | timestamp | ephemeral.
func header(env domain.MessageEnvelope) []byte {
	b := make([]byte, 0, 4+2+len(env.AlgorithmID)+len(env.IV)+8+1)
	b = binary.BigEndian.AppendUint32(b, uint32(env.Version))
	b = binary.BigEndian.AppendUint16(b, uint16(len(env.AlgorithmID)))
	b = append(b, env.AlgorithmID...)
	b = append(b, env.IV...)
	b = binary.BigEndian.AppendUint64(b, uint64(env.Timestamp))
	if env.Ephemeral {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return b
}

var _ domain.HybridCipher = (*Cipher)(nil)
