package web5

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	pubHex := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))

	payload := []byte("Web5 Login\nDomain: example.com\nTimestamp: 1700000000")
	sig, err := SignBytes(payload, privHex)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := VerifySignature(pubHex, GetHash(payload), sig); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}
}

func TestVerifySignatureUncompressedKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	pubHex := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey))

	payload := []byte("payload")
	sig, err := SignBytes(payload, privHex)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := VerifySignature(pubHex, GetHash(payload), sig); err != nil {
		t.Fatalf("expected uncompressed key to verify: %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	key, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	pubHex := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))

	sig, err := SignBytes([]byte("original"), privHex)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := VerifySignature(pubHex, GetHash([]byte("tampered")), sig); err == nil {
		t.Fatalf("expected verification failure for tampered payload")
	}
}

func TestVerifySignatureBadKeyMaterial(t *testing.T) {
	if err := VerifySignature("nothex", GetHash([]byte("x")), make([]byte, 64)); err == nil {
		t.Fatalf("expected error for undecodable key")
	}
	if err := VerifySignature("abcd", GetHash([]byte("x")), make([]byte, 64)); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestNormalizeSigHex(t *testing.T) {
	cases := map[string]string{
		"0xdeadbeef": "deadbeef",
		"0XDEADBEEF": "DEADBEEF",
		"deadbeef":   "deadbeef",
	}
	for in, want := range cases {
		if got := NormalizeSigHex(in); got != want {
			t.Fatalf("NormalizeSigHex(%q) = %q, want %q", in, got, want)
		}
	}
}
