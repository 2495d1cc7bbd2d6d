package jwt

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func testKeypair(t *testing.T) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	priv := hex.EncodeToString(crypto.FromECDSA(key))
	pub := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))
	return priv, pub
}

func TestCreateAndValidate(t *testing.T) {
	priv, pub := testKeypair(t)

	claims := Claims{
		Issuer:         pub,
		Subject:        "did:web5:alice",
		Audience:       "pds.example.com",
		Scope:          ScopeAccess,
		ExpirationTime: fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()),
		JWTID:          "test-jti",
	}

	token, err := Create(claims, priv)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	header, parsed, err := Validate(token, pub)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if header.Algorithm != "WEB5" {
		t.Fatalf("unexpected algorithm %q", header.Algorithm)
	}
	if parsed.Subject != claims.Subject || parsed.Scope != ScopeAccess {
		t.Fatalf("claims did not round trip: %+v", parsed)
	}
}

func TestValidateExpired(t *testing.T) {
	priv, pub := testKeypair(t)

	claims := Claims{
		Subject:        "did:web5:alice",
		ExpirationTime: fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix()),
	}
	token, err := Create(claims, priv)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token, pub); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateWrongKey(t *testing.T) {
	priv, _ := testKeypair(t)
	_, otherPub := testKeypair(t)

	token, err := Create(Claims{Subject: "did:web5:alice"}, priv)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token, otherPub); err == nil {
		t.Fatalf("expected token signed with another key to be rejected")
	}
}

func TestValidateTampered(t *testing.T) {
	priv, pub := testKeypair(t)

	token, err := Create(Claims{Subject: "did:web5:alice"}, priv)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + ".eyJzdWIiOiJkaWQ6d2ViNTpldmlsIn0." + parts[2]
	if _, _, err := Validate(tampered, pub); err == nil {
		t.Fatalf("expected tampered payload to be rejected")
	}

	if _, _, err := Validate("onlyonepart", pub); err == nil {
		t.Fatalf("expected malformed token to be rejected")
	}
}
