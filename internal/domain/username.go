package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Suffix lengths for generated usernames. The longer one is used for the
// single retry after a collision.
const (
	SuffixLength      = 8
	RetrySuffixLength = 10
)

// GenerateUsername builds prefix + random lowercase alphanumerics + "bot".
func GenerateUsername(prefix string, suffixLen int) (string, error) {
	suffix := make([]byte, suffixLen)
	max := big.NewInt(int64(len(usernameAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate username suffix: %w", err)
		}
		suffix[i] = usernameAlphabet[n.Int64()]
	}
	return prefix + string(suffix) + "bot", nil
}
