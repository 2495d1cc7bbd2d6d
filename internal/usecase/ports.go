package usecase

import (
	"context"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

// ActorStore is the durable per-account object store holding record bytes
// and commit state. GenerateUnsigned has no durable effect; ApplyWrites is
// all-or-nothing, with the previous-commit compare-and-swap checked
// atomically with persistence.
type ActorStore interface {
	PreCreateRepo(ctx context.Context, did string) (domain.UnsignedCommit, error)
	CreateRepo(ctx context.Context, did string, root web5.SignedRoot, signingKey string) (domain.Commit, error)
	GenerateUnsigned(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string) (domain.UnsignedCommit, error)
	ApplyWrites(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string, root web5.SignedRoot, signingKey string) (domain.Commit, error)
	Destroy(ctx context.Context, did string) error
}

// AccountStore is the account/session CRUD collaborator.
type AccountStore interface {
	Get(ctx context.Context, identifier string, flags domain.AvailabilityFlags) (*domain.Account, error)
	Create(ctx context.Context, opts domain.CreateAccountOpts) (domain.Session, error)
	UpdateRepoRoot(ctx context.Context, did, cid, rev string) error
	Delete(ctx context.Context, did string) error
	CreateSession(ctx context.Context, did string) (domain.Session, error)
}

// Emitter appends events to the ordered log inside an exclusive section.
// Each call returns the sequence number the log assigned.
type Emitter interface {
	SequenceIdentityEvt(ctx context.Context, did string, handle *string) (int64, error)
	SequenceAccountEvt(ctx context.Context, did string, status domain.AccountStatus) (int64, error)
	SequenceCommit(ctx context.Context, did string, commit domain.Commit, ops []domain.WriteResult) (int64, error)
	SequenceSyncEvt(ctx context.Context, did string, commit domain.Commit) (int64, error)
	Compact(ctx context.Context, did string, except []int64) error
}

// Sequencer hands out the log under exclusivity: the emit sequence of one
// request is never interleaved with another's. The lock is released on
// every exit path.
type Sequencer interface {
	WithExclusive(ctx context.Context, fn func(Emitter) error) error
}

// Resolver translates a ledger address into its identity document.
// Every resolution is authoritative for a single logical action only.
type Resolver interface {
	ResolveDocument(ctx context.Context, address string) (web5.IdentityDocument, error)
}
