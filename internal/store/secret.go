package store

import (
	"encoding/hex"
	"fmt"
	"strings"

	"securechat/internal/crypto"
)

const secretBytes = 32

// LoadOrCreateSecret returns the hex-encoded storage secret kept at path,
// generating a fresh one (0600) when the file does not exist.
func LoadOrCreateSecret(path string) ([]byte, error) {
	b, ok, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if ok {
		secret, err := hex.DecodeString(strings.TrimSpace(string(b)))
		crypto.Wipe(b)
		if err != nil || len(secret) < secretBytes {
			return nil, fmt.Errorf("storage key %s is malformed", path)
		}
		return secret, nil
	}

	secret, err := crypto.RandomBytes(secretBytes)
	if err != nil {
		return nil, err
	}
	enc := []byte(hex.EncodeToString(secret))
	defer crypto.Wipe(enc)
	if err := writeFile(path, enc, 0o600); err != nil {
		return nil, err
	}
	return secret, nil
}
