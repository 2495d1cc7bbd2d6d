package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CommitVersion is the current commit format version.
const CommitVersion = 3

// UnsignedCommit is the transient descriptor between the two phases of the
// externally-signed protocol. It exists only in memory and on the wire,
// never in storage. UnsignedBytes is the canonical serialization handed to
// the key custodian, hex-encoded.
type UnsignedCommit struct {
	DID           string  `json:"did"`
	Rev           string  `json:"rev"`
	Data          string  `json:"data"`
	Prev          *string `json:"prev,omitempty"`
	Version       int     `json:"version"`
	UnsignedBytes string  `json:"unSignBytes"`
}

// Commit is an applied, signed descriptor advancing an account's
// repository state.
type Commit struct {
	DID       string  `json:"did"`
	Rev       string  `json:"rev"`
	CID       string  `json:"cid"`
	Data      string  `json:"data"`
	Prev      *string `json:"prev,omitempty"`
	Version   int     `json:"version"`
	Signature []byte  `json:"sig"`
}

// commitPayload is the canonical form signed by the key custodian. Field
// order is fixed; encoding/json preserves struct order, which is what
// makes regeneration byte-identical.
type commitPayload struct {
	DID     string  `json:"did"`
	Rev     string  `json:"rev"`
	Data    string  `json:"data"`
	Prev    *string `json:"prev"`
	Version int     `json:"version"`
}

// CanonicalCommitBytes serializes an unsigned descriptor into the exact
// bytes the custodian signs. Two calls with identical inputs must return
// identical bytes or the round-tripped signature cannot verify.
func CanonicalCommitBytes(did, rev, data string, prev *string, version int) ([]byte, error) {
	b, err := json.Marshal(commitPayload{
		DID:     did,
		Rev:     rev,
		Data:    data,
		Prev:    prev,
		Version: version,
	})
	if err != nil {
		return nil, errors.Wrap(err, "commit serialization failed")
	}
	return b, nil
}

// NewUnsignedCommit builds the descriptor plus its hex-encoded canonical
// bytes.
func NewUnsignedCommit(did, rev, data string, prev *string) (UnsignedCommit, error) {
	raw, err := CanonicalCommitBytes(did, rev, data, prev, CommitVersion)
	if err != nil {
		return UnsignedCommit{}, err
	}
	return UnsignedCommit{
		DID:           did,
		Rev:           rev,
		Data:          data,
		Prev:          prev,
		Version:       CommitVersion,
		UnsignedBytes: hex.EncodeToString(raw),
	}, nil
}

// NextRev produces the strictly increasing revision following prev.
// Revisions are "r0", "r1", ... per account; opaque to clients but
// comparable.
func NextRev(prev string) (string, error) {
	if prev == "" {
		return "r0", nil
	}
	n, ok := ParseRev(prev)
	if !ok {
		return "", errors.Errorf("unparseable revision: %q", prev)
	}
	return fmt.Sprintf("r%d", n+1), nil
}

// ParseRev extracts the ordinal of a revision marker.
func ParseRev(rev string) (int64, bool) {
	rest, found := strings.CutPrefix(rev, "r")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
