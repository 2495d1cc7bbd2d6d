package jwt

// Header is the compact JWT header. The only supported algorithm is the
// server's secp256k1 scheme.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

// Claims is the payload of an access or refresh token.
type Claims struct {
	Issuer         string `json:"iss"` // server key
	Subject        string `json:"sub"` // account DID
	Audience       string `json:"aud"` // server FQDN
	Scope          string `json:"scope,omitempty"`
	ExpirationTime string `json:"exp,omitempty"`
	IssuedAt       string `json:"iat,omitempty"`
	JWTID          string `json:"jti,omitempty"`
}

const (
	ScopeAccess  = "web5:access"
	ScopeRefresh = "web5:refresh"
)
