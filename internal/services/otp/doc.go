// Package otp issues and verifies time-boxed numeric one-time codes.
//
// One challenge is active at a time and the last issue wins. Every verify
// consumes the stored challenge whatever the outcome, and expiry is checked
// lazily at verify time against the injected clock.
package otp
