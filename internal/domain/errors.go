package domain

import "fmt"

// NotFoundError represents a missing resource. Many callers treat it as
// recoverable: an unresolved ledger address just means the identity has
// not been claimed yet.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// MalformedError represents input or an external document that cannot be
// parsed. Never retried automatically.
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string {
	if e.Reason == "" {
		return "malformed input"
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func (e MalformedError) Is(target error) bool {
	_, ok := target.(MalformedError)
	if ok {
		return true
	}
	_, ok = target.(*MalformedError)
	return ok
}

var ErrMalformed = MalformedError{}

// TransportError represents a lookup that could not complete against an
// external collaborator, distinct from the collaborator answering "no".
type TransportError struct {
	Reason string
}

func (e TransportError) Error() string {
	if e.Reason == "" {
		return "transport failure"
	}
	return fmt.Sprintf("transport failure: %s", e.Reason)
}

func (e TransportError) Is(target error) bool {
	_, ok := target.(TransportError)
	if ok {
		return true
	}
	_, ok = target.(*TransportError)
	return ok
}

var ErrTransport = TransportError{}

// SwapMismatchError is the optimistic-concurrency conflict: the account's
// live commit pointer no longer matches the caller's expectation. Callers
// may retry with a fresh previous commit.
type SwapMismatchError struct {
	Expected string
	Actual   string
}

func (e SwapMismatchError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return "swap commit mismatch"
	}
	return fmt.Sprintf("swap commit mismatch: expected %s, found %s", e.Expected, e.Actual)
}

func (e SwapMismatchError) Is(target error) bool {
	_, ok := target.(SwapMismatchError)
	if ok {
		return true
	}
	_, ok = target.(*SwapMismatchError)
	return ok
}

var ErrSwapMismatch = SwapMismatchError{}

// CryptoError represents invalid signature or key material. Treated as a
// security-relevant rejection and never silently retried.
type CryptoError struct {
	Reason string
}

func (e CryptoError) Error() string {
	if e.Reason == "" {
		return "cryptographic verification failed"
	}
	return fmt.Sprintf("cryptographic verification failed: %s", e.Reason)
}

func (e CryptoError) Is(target error) bool {
	_, ok := target.(CryptoError)
	if ok {
		return true
	}
	_, ok = target.(*CryptoError)
	return ok
}

var ErrCrypto = CryptoError{}

// RecordInvalidError represents a record payload that fails validation,
// or a batch violating its bounds.
type RecordInvalidError struct {
	Reason string
}

func (e RecordInvalidError) Error() string {
	if e.Reason == "" {
		return "record invalid"
	}
	return fmt.Sprintf("record invalid: %s", e.Reason)
}

func (e RecordInvalidError) Is(target error) bool {
	_, ok := target.(RecordInvalidError)
	if ok {
		return true
	}
	_, ok = target.(*RecordInvalidError)
	return ok
}

var ErrRecordInvalid = RecordInvalidError{}

// KeyRequiredError represents an update or delete that omits its record key.
type KeyRequiredError struct{}

func (e KeyRequiredError) Error() string {
	return "record key required"
}

func (e KeyRequiredError) Is(target error) bool {
	_, ok := target.(KeyRequiredError)
	if ok {
		return true
	}
	_, ok = target.(*KeyRequiredError)
	return ok
}

var ErrKeyRequired = KeyRequiredError{}

// SequencerError is a fatal failure to append to the ordered event log.
// A mutation whose events did not land must not be reported as success.
type SequencerError struct {
	Reason string
}

func (e SequencerError) Error() string {
	if e.Reason == "" {
		return "sequencer failure"
	}
	return fmt.Sprintf("sequencer failure: %s", e.Reason)
}

func (e SequencerError) Is(target error) bool {
	_, ok := target.(SequencerError)
	if ok {
		return true
	}
	_, ok = target.(*SequencerError)
	return ok
}

var ErrSequencer = SequencerError{}

// StorageError is a fatal persistence failure. The caller must not advance
// any downstream event or repo root pointer after seeing one.
type StorageError struct {
	Reason string
}

func (e StorageError) Error() string {
	if e.Reason == "" {
		return "storage failure"
	}
	return fmt.Sprintf("storage failure: %s", e.Reason)
}

func (e StorageError) Is(target error) bool {
	_, ok := target.(StorageError)
	if ok {
		return true
	}
	_, ok = target.(*StorageError)
	return ok
}

var ErrStorage = StorageError{}
