package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"securechat/internal/domain"
)

const accountPrefix = "account/"

// AccountSecureStore keeps password accounts as individual sealed records.
type AccountSecureStore struct {
	store domain.SecureStore
	mu    sync.Mutex // serialises check-then-write
}

// NewAccountStore returns an AccountSecureStore backed by s.
func NewAccountStore(s domain.SecureStore) *AccountSecureStore {
	return &AccountSecureStore{store: s}
}

func accountKey(username domain.Username) string {
	return accountPrefix + username.String()
}

// LookupAccount retrieves the account for username.
func (a *AccountSecureStore) LookupAccount(
	ctx context.Context,
	username domain.Username,
) (domain.Account, bool, error) {
	var acct domain.Account
	ok, err := a.store.Get(ctx, accountKey(username), &acct)
	if err != nil || !ok {
		return domain.Account{}, false, err
	}
	return acct, true, nil
}

// InsertAccount stores a new account; an existing username is rejected.
func (a *AccountSecureStore) InsertAccount(ctx context.Context, acct domain.Account) error {
	if acct.Username == "" {
		return errors.New("account has no username")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists, err := a.LookupAccount(ctx, acct.Username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, acct.Username)
	}
	return a.store.Put(ctx, accountKey(acct.Username), acct)
}

// UpdateAccount overwrites an existing account.
func (a *AccountSecureStore) UpdateAccount(ctx context.Context, acct domain.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists, err := a.LookupAccount(ctx, acct.Username)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, acct.Username)
	}
	return a.store.Put(ctx, accountKey(acct.Username), acct)
}

// DeleteAccount removes the account for username. Removing a missing
// account is not an error.
func (a *AccountSecureStore) DeleteAccount(ctx context.Context, username domain.Username) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Remove(ctx, accountKey(username))
}

// Compile-time assertion that AccountSecureStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountSecureStore)(nil)
