package domain

import "encoding/json"

// MaxWrites bounds a single batch so one commit's CPU and I/O cost stays
// predictable. Batches above it are rejected whole.
const MaxWrites = 200

// WriteAction discriminates the closed set of write variants.
type WriteAction string

const (
	WriteActionCreate WriteAction = "create"
	WriteActionUpdate WriteAction = "update"
	WriteActionDelete WriteAction = "delete"
)

// PreparedWrite is one normalized operation of a batch: constructed once
// per request, immutable, consumed exactly once by commit generation.
// Create and Update carry canonical record bytes and their content
// identifier; Delete carries only the target key.
type PreparedWrite struct {
	Action     WriteAction     `json:"action"`
	DID        string          `json:"did"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid,omitempty"`
	URI        string          `json:"uri"`
	Validated  bool            `json:"-"`
}

// Path is the repository entry key the write targets.
func (w PreparedWrite) Path() string {
	return w.Collection + "/" + w.RKey
}

// WriteResult is the per-operation outcome reported after apply.
type WriteResult struct {
	Action           WriteAction `json:"action"`
	URI              string      `json:"uri,omitempty"`
	CID              string      `json:"cid,omitempty"`
	ValidationStatus *string     `json:"validationStatus,omitempty"`
}
