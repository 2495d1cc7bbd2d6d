package domain

import "encoding/json"

// EventKind is the closed set of sequenced event types downstream
// consumers replicate from the firehose.
type EventKind string

const (
	EventKindIdentity EventKind = "identity"
	EventKindAccount  EventKind = "account"
	EventKindCommit   EventKind = "commit"
	EventKindSync     EventKind = "sync"
)

// Event is the envelope appended to the ordered log. Seq is assigned by
// the log at append time and strictly increases across all accounts.
type Event struct {
	Seq     int64           `json:"seq"`
	Kind    EventKind       `json:"kind"`
	DID     string          `json:"did"`
	Payload json.RawMessage `json:"payload"`
}

// IdentityEvt announces a DID and optionally its current handle binding.
type IdentityEvt struct {
	DID    string  `json:"did"`
	Handle *string `json:"handle,omitempty"`
}

// AccountEvt announces a lifecycle transition.
type AccountEvt struct {
	DID    string        `json:"did"`
	Status AccountStatus `json:"status"`
	Active bool          `json:"active"`
}

// CommitEvt announces an applied commit with its write operations.
type CommitEvt struct {
	DID  string        `json:"did"`
	Rev  string        `json:"rev"`
	CID  string        `json:"cid"`
	Prev *string       `json:"prev,omitempty"`
	Ops  []WriteResult `json:"ops"`
}

// SyncEvt carries the commit snapshot consumers use to resynchronize.
type SyncEvt struct {
	DID  string `json:"did"`
	Rev  string `json:"rev"`
	CID  string `json:"cid"`
	Data string `json:"data"`
}
