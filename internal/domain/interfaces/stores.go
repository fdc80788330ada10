package interfaces

import (
	"context"

	domaintypes "securechat/internal/domain/types"
)

// SecureStore encrypts values before they reach a Backend.
type SecureStore interface {
	Put(ctx context.Context, key string, value any) error
	// Get decodes the value under key into out. found is false when the key
	// is absent or its blob could not be authenticated.
	Get(ctx context.Context, key string, out any) (found bool, err error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Backend persists opaque encrypted records.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// AccountStore is the credential repository used for password login.
type AccountStore interface {
	LookupAccount(ctx context.Context, username domaintypes.Username) (domaintypes.Account, bool, error)
	InsertAccount(ctx context.Context, account domaintypes.Account) error
	UpdateAccount(ctx context.Context, account domaintypes.Account) error
	DeleteAccount(ctx context.Context, username domaintypes.Username) error
}
