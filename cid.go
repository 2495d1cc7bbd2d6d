package web5

import (
	"github.com/mr-tron/base58"
)

// CIDPrefix marks base58btc-encoded content identifiers.
const CIDPrefix = "z"

// NewCID derives the content identifier for an immutable byte payload:
// base58btc over sha256, prefixed so encodings stay distinguishable.
func NewCID(b []byte) string {
	return CIDPrefix + base58.Encode(GetHash(b))
}

// IsCID reports whether s looks like an identifier produced by NewCID.
func IsCID(s string) bool {
	if len(s) < 2 || s[:1] != CIDPrefix {
		return false
	}
	raw, err := base58.Decode(s[1:])
	if err != nil {
		return false
	}
	return len(raw) == 32
}
