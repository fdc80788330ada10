// Package softauthn is a software platform authenticator.
//
// It stands in for Touch ID or Windows Hello on machines without one: it
// creates ECDSA P-256 credentials, returns "none" attestation objects and
// signs assertions exactly as a hardware authenticator would. Private keys
// are kept sealed in a SecureStore and user presence is delegated to a
// callback (the CLI asks the user to confirm on the terminal).
package softauthn
