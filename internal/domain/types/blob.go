package types

// EncryptedBlob is the at-rest form of every SecureStore record.
//
// Salt and IV are fresh for every encryption.
type EncryptedBlob struct {
	V          int    `json:"v"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iter"`
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}
