package session

import (
	"fmt"
	"unicode"
)

const (
	// minPasswordLength defines the minimum number of characters required for a password.
	minPasswordLength = 12
)

var (
	// ErrWeakPassword is returned when the password fails the strength policy.
	ErrWeakPassword = fmt.Errorf(
		"password is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPasswordLength,
	)
)

// isSecurePassword enforces a basic strength policy.
func isSecurePassword(password string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(password) < minPasswordLength {
		return false
	}
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
