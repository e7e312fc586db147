package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateOTP returns a 6-digit verification code, uniform in
// [100000, 999999].
func GenerateOTP() int {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(err)
	}
	return int(n.Int64()) + 100000
}
