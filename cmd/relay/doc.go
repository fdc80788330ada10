// Package main runs the in-memory securechat relay used during development
// and tests. It stores published public keys and queues encrypted deliveries
// until recipients fetch and ack them. See package internal/relay for the
// HTTP API; /metrics additionally serves Prometheus counters.
//
// All state is held in memory and lost on exit. The relay only ever sees
// public keys and ciphertext.
package main
