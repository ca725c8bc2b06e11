package core

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

// ClaimCodeAlphabet omits characters that are easy to misread on a label
// (I, O, 0 and 1).
const ClaimCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type RandomClaimCodeGenerator struct {
	Alphabet string
}

func (g RandomClaimCodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = defaultClaimCodeLength
	}
	alphabet := g.Alphabet
	if alphabet == "" {
		alphabet = ClaimCodeAlphabet
	}
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("core: claim code entropy: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// ClaimCodesEqual compares a stored and a supplied code byte for byte in
// constant time. An empty stored code never matches.
func ClaimCodesEqual(stored string, supplied string) bool {
	if stored == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
