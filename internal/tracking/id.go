package tracking

import (
	"crypto/rand"
	"math/big"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLen      = 9
)

var alphabetSize = big.NewInt(int64(len(suffixAlphabet)))

// randomSuffix returns a base36 string that keeps concurrent events
// written in the same millisecond apart.
func randomSuffix() string {
	b := make([]byte, suffixLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b)
}
