// Package secrets generates registry auth-info codes.
package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Auth-info must survive EPP transports that mangle exotic characters, so
// the alphabet sticks to unambiguous letters, digits and a few symbols.
const authInfoAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789!@#$%^*"

const authInfoLength = 16

// NewAuthInfo returns a fresh random auth-info secret suitable for domain
// create and transfer operations.
func NewAuthInfo() (string, error) {
	buf := make([]byte, authInfoLength)
	max := big.NewInt(int64(len(authInfoAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		buf[i] = authInfoAlphabet[n.Int64()]
	}
	return string(buf), nil
}
