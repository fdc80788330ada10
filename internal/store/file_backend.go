package store

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"securechat/internal/domain"
)

const recordExt = ".enc"

// FileBackend keeps one file per key under dir.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir (0700) if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, hex.EncodeToString([]byte(key))+recordExt)
}

func (b *FileBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	return readFile(b.path(key))
}

func (b *FileBackend) Write(_ context.Context, key string, data []byte) error {
	return writeFile(b.path(key), data, 0o600)
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	return removeFile(b.path(key))
}

// Keys lists the stored keys, skipping files it did not write.
func (b *FileBackend) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(name, recordExt))
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

var _ domain.Backend = (*FileBackend)(nil)
