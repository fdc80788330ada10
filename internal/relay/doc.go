// Package relay is the store-and-forward channel between securechat peers.
//
// Client implements domain.RelayClient over JSON/HTTP and Server is the
// matching in-memory relay used by cmd/relay and by tests.
//
// HTTP API
//
//	POST /keys                  publish a PublicKeyRecord
//	GET  /keys/{id}             fetch the record published for {id}
//	POST /msg/{id}              enqueue a Delivery addressed to {id}
//	GET  /msg/{id}?limit=N      return up to N queued deliveries, oldest first
//	POST /msg/{id}/ack          drop the first {"count": N} queued deliveries
//
// The relay never sees plaintext or private keys. It checks that a published
// key hashes to the identity handle it is published under, and nothing else.
package relay
