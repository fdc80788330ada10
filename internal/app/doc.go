// Package app loads configuration and wires the securechat dependency graph
// for the CLI.
//
// Config comes from defaults, then <home>/config.yaml, then SECURECHAT_*
// environment variables (a <home>/.env file is read first if present), then
// command line flags applied by the caller.
package app
