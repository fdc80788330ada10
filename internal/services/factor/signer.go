package factor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"securechat/internal/crypto"
	"securechat/internal/domain"
)

// Signer issues and verifies FactorProofs with an HMAC key that never leaves
// the process.
type Signer struct {
	key *memguard.Enclave
}

// NewSigner draws a fresh MAC key.
func NewSigner() (*Signer, error) {
	key, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	return &Signer{key: memguard.NewEnclave(key)}, nil
}

// Issue returns a signed proof that subject passed method at verifiedAt.
func (s *Signer) Issue(method domain.FactorMethod, subject string, verifiedAt time.Time) (domain.FactorProof, error) {
	p := domain.FactorProof{
		ID:         uuid.NewString(),
		Method:     method,
		Subject:    subject,
		VerifiedAt: verifiedAt.UTC(),
	}
	mac, err := s.mac(p)
	if err != nil {
		return domain.FactorProof{}, err
	}
	p.MAC = mac
	return p, nil
}

// Verify reports whether p carries a valid MAC.
func (s *Signer) Verify(p domain.FactorProof) bool {
	if len(p.MAC) != sha256.Size {
		return false
	}
	want, err := s.mac(p)
	if err != nil {
		return false
	}
	return hmac.Equal(want, p.MAC)
}

func (s *Signer) mac(p domain.FactorProof) ([]byte, error) {
	buf, err := s.key.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	h := hmac.New(sha256.New, buf.Bytes())
	for _, field := range []string{p.ID, p.Method.String(), p.Subject} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.VerifiedAt.UnixNano()))
	h.Write(ts[:])
	return h.Sum(nil), nil
}
