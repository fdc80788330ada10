package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

var errNoChunks = errors.New("no chunks to unwrap")

// MaxChunkSize is the largest plaintext one RSA-OAEP-SHA256 operation can
// carry under pub: k - 2*hLen - 2.
func MaxChunkSize(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// WrapChunks encrypts data under pub with RSA-OAEP-SHA256, splitting it into
// chunks of at most chunkSize bytes. chunkSize <= 0 means MaxChunkSize.
// Chunks are returned in order and must be unwrapped in the same order.
func WrapChunks(pub *rsa.PublicKey, data []byte, chunkSize int) ([][]byte, error) {
	if pub == nil {
		return nil, errors.New("nil public key")
	}
	if len(data) == 0 {
		return nil, errors.New("nothing to wrap")
	}
	limit := MaxChunkSize(pub)
	if chunkSize <= 0 || chunkSize > limit {
		chunkSize = limit
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("rsa key too small for oaep (%d bytes)", pub.Size())
	}

	out := make([][]byte, 0, (len(data)+chunkSize-1)/chunkSize)
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data[off:end], nil)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// UnwrapChunks reverses WrapChunks.
func UnwrapChunks(priv *rsa.PrivateKey, chunks [][]byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("nil private key")
	}
	if len(chunks) == 0 {
		return nil, errNoChunks
	}
	var out []byte
	for _, c := range chunks {
		pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, c, nil)
		if err != nil {
			Wipe(out)
			return nil, err
		}
		out = append(out, pt...)
		Wipe(pt)
	}
	return out, nil
}
