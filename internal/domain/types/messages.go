package types

// MessageEnvelope is the transportable output of hybrid encryption.
//
// WrappedKey holds the RSA-OAEP chunks of the content key, in order.
type MessageEnvelope struct {
	Version     int      `json:"version"`
	AlgorithmID string   `json:"algorithm"`
	WrappedKey  [][]byte `json:"wrapped_key"`
	Content     []byte   `json:"content"`
	IV          []byte   `json:"iv"`
	Timestamp   int64    `json:"timestamp"`
	Ephemeral   bool     `json:"ephemeral"`
}

// Delivery addresses an envelope on the relay.
type Delivery struct {
	From     IdentityID      `json:"from"`
	To       IdentityID      `json:"to"`
	Envelope MessageEnvelope `json:"envelope"`
}

// Message kinds carried inside an envelope.
const (
	KindText           = "text"
	KindSecurityNotice = "security-notification"
)

// DecryptedMessage is what the message service returns from Receive.
type DecryptedMessage struct {
	From      IdentityID `json:"from"`
	Kind      string     `json:"kind"`
	Plaintext []byte     `json:"plaintext"`
	Timestamp int64      `json:"timestamp"`
	Ephemeral bool       `json:"ephemeral"`
}
