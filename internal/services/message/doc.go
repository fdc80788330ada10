// Package message sends and receives hybrid-encrypted messages through the
// relay.
//
// Peer keys are pinned on first use. Ephemeral messages need a High session
// and are never written to history.
package message
