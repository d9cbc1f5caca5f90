package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// resetCodeMin and resetCodeSpan bound the 6-digit code space
// [100000, 999999]. The leading digit is never zero so the code always
// prints as exactly six characters.
const (
	resetCodeMin  = 100000
	resetCodeSpan = 900000
)

// NewResetCode returns a uniformly random 6-digit numeric string drawn
// from crypto/rand.
func NewResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resetCodeMin+n.Int64(), 10), nil
}
