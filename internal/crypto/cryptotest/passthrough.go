package cryptotest

// Passthrough stores plaintext unchanged. Test use only.
type Passthrough struct{}

func (Passthrough) Encrypt(plaintext string) (string, error) { return plaintext, nil }
func (Passthrough) Decrypt(encoded string) (string, error)   { return encoded, nil }
