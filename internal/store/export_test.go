package store

import "github.com/awnumar/memguard"

// SetUnseal replaces how s opens its secret enclave.
func SetUnseal(s *SecureStore, fn func() (*memguard.LockedBuffer, error)) {
	s.unseal = fn
}
