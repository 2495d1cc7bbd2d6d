package web5

import "strings"

// Service is a named endpoint inside a ledger identity document.
type Service struct {
	Type     string `json:"type"`
	Endpoint string `json:"endpoint"`
}

// IdentityDocument is the DID-document-shaped record resolved from the
// ledger for an address. It is fetched fresh for every privileged action;
// a resolution authorizes exactly one logical action.
type IdentityDocument struct {
	VerificationMethods map[string]string  `json:"verificationMethods"`
	AlsoKnownAs         []string           `json:"alsoKnownAs"`
	Services            map[string]Service `json:"services"`
}

// HasSigningKey reports whether key is one of the document's
// verification methods.
func (d IdentityDocument) HasSigningKey(key string) bool {
	for _, k := range d.VerificationMethods {
		if k == key {
			return true
		}
	}
	return false
}

// Handle extracts the primary handle binding from alsoKnownAs. The first
// entry must be an at:// URI; anything else is an incompatible document.
func (d IdentityDocument) Handle() (string, bool) {
	if len(d.AlsoKnownAs) == 0 {
		return "", false
	}
	handle, found := strings.CutPrefix(d.AlsoKnownAs[0], "at://")
	if !found || handle == "" {
		return "", false
	}
	return handle, true
}

// SignedRoot is an unsigned commit descriptor round-tripped through an
// external signer: the server hands out the canonical bytes, the key
// custodian signs them, and the client posts them back here.
type SignedRoot struct {
	DID         string  `json:"did"`
	Rev         string  `json:"rev"`
	Data        string  `json:"data"`
	Prev        *string `json:"prev,omitempty"`
	Version     int     `json:"version"`
	SignedBytes string  `json:"signedBytes"`
}

// CommitMeta identifies an applied commit.
type CommitMeta struct {
	CID string `json:"cid"`
	Rev string `json:"rev"`
}

// WellKnownWeb5 is served at /.well-known/web5 for endpoint discovery.
type WellKnownWeb5 struct {
	Version   string                  `json:"version"`
	Domain    string                  `json:"domain"`
	ServerKey string                  `json:"serverKey"`
	Endpoints map[string]Web5Endpoint `json:"endpoints"`
}

type Web5Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}
