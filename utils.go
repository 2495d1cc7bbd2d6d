package web5

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns a random alphanumeric string of the given
// length, used for placeholder credentials on externally-keyed accounts.
func GenerateRandomString(length int) string {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		sb.WriteByte(alphanumeric[n.Int64()])
	}
	return sb.String()
}

// ValidateHandle checks the syntactic shape of a handle: lowercase
// dot-separated labels of letters, digits and hyphens, at least two labels.
func ValidateHandle(handle string) bool {
	if len(handle) < 3 || len(handle) > 253 {
		return false
	}
	labels := strings.Split(handle, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
				return false
			}
		}
	}
	return true
}

// NormalizeHandle lowercases and trims a handle before validation.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}
