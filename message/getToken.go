package message

import (
	"crypto/rand"
	"encoding/hex"
)

// MaxTokenSize maximum of token size that can be used in message
const MaxTokenSize = 8

type Token []byte

func (t Token) String() string {
	return hex.EncodeToString(t)
}

// GetToken generates a random token of MaxTokenSize bytes.
func GetToken() (Token, error) {
	b := make(Token, MaxTokenSize)
	if _, err := rand.Read(b); err != nil {
		// fallback to cryptographically insecure pseudo-random generator
		if _, err = weakRng.Read(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}
