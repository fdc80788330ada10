// Package commands defines the securechat CLI.
//
// Commands
//
//   - signup         Create a password account bound to this device's identity
//   - login          Log in with a password, the device identity or biometrics
//   - status         Show the session state and security level
//   - fingerprint    Print the identity fingerprint
//   - elevate        Switch to high security with a one-time code or biometrics
//   - downgrade      Return to standard security
//   - logout         End the session and purge its material
//   - biometric      Register, inspect or remove the biometric credential
//   - publish        Publish the identity public key to the relay
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - history        Show retained messages
//   - forget         Drop the pinned key of a peer
//   - passwd         Change the account password
//
// # Implementation
//
// The root command loads the config, builds the dependency graph and
// restores any persisted session before a subcommand runs, so every command
// sees the same state a long-running client would.
package commands
