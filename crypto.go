package web5

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// GetHash returns the sha256 digest of b. Every externally signed payload
// (challenge messages, unsigned commit bytes) is hashed with this before
// signing and verification.
func GetHash(b []byte) []byte {
	hash := sha256.Sum256(b)
	return hash[:]
}

// NormalizeSigHex strips the optional 0x/0X prefix wallets prepend to
// hex-encoded signatures.
func NormalizeSigHex(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// VerifySignature checks a secp256k1 signature over digest against the
// hex-encoded public key. Compressed and uncompressed keys are accepted,
// as are 65-byte signatures carrying a trailing recovery byte.
func VerifySignature(publicKeyHex string, digest []byte, signature []byte) error {
	keyBytes, err := hex.DecodeString(NormalizeSigHex(publicKeyHex))
	if err != nil {
		return errors.Wrap(err, "public key decode failed")
	}
	if len(keyBytes) != 33 && len(keyBytes) != 65 {
		return errors.Errorf("invalid public key length: %d", len(keyBytes))
	}

	sig := signature
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return errors.Errorf("invalid signature length: %d", len(signature))
	}

	if !crypto.VerifySignature(keyBytes, digest, sig) {
		return errors.New("signature mismatch")
	}
	return nil
}

// SignBytes signs sha256(payload) with the hex-encoded secp256k1 private
// key and returns the 65-byte recoverable signature.
func SignBytes(payload []byte, privatekeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(NormalizeSigHex(privatekeyHex))
	if err != nil {
		return nil, errors.Wrap(err, "private key decode failed")
	}
	return crypto.Sign(GetHash(payload), key)
}

// PrivKeyToPub derives the compressed public key for a hex private key.
func PrivKeyToPub(privatekeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(NormalizeSigHex(privatekeyHex))
	if err != nil {
		return "", errors.Wrap(err, "private key decode failed")
	}
	return hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)), nil
}
