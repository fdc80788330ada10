// Package factor mints and checks proofs that a second factor succeeded.
//
// The OTP and biometric services hand a FactorProof to the caller; the
// session controller only elevates on a proof whose MAC verifies under the
// same process-local key.
package factor
