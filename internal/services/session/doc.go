// Package session runs the login and high-security state machine.
//
// States move LoggedOut -> Authenticating -> LoggedIn(Standard) and back,
// with LoggedIn(Standard) <-> LoggedIn(High) toggled by Elevate and
// Downgrade. Only one authentication may be in flight, and it is bounded by
// AuthTimeout: an error, cancellation or timeout always returns the
// controller to LoggedOut with no session record left in the store.
//
// Elevation requires a FactorProof minted by the OTP or biometric service
// after the current login. High security lapses back to Standard once
// HighSecurityTTL has passed since elevation; the first read after that
// rewrites the stored session and notifies subscribers.
package session
