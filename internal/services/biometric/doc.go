// Package biometric registers a platform-authenticator credential and checks
// assertions against it.
//
// The gate does not trust the authenticator's word: every registration is
// parsed and checked (client data, RP ID hash, UP and UV flags, COSE key),
// and every assertion's ES256 signature is verified against the stored public
// key with a strictly increasing sign counter before a FactorProof is issued.
package biometric
