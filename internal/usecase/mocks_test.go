package usecase

import (
	"context"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

// --- shared mocks ---

type mockActorStore struct {
	preCreated  string
	created     string
	generated   []domain.PreparedWrite
	applied     []domain.PreparedWrite
	appliedSwap *string
	destroyed   []string

	unsigned domain.UnsignedCommit
	commit   domain.Commit

	createErr   error
	generateErr error
	applyErr    error
	destroyErr  error
}

func (m *mockActorStore) PreCreateRepo(ctx context.Context, did string) (domain.UnsignedCommit, error) {
	m.preCreated = did
	if m.generateErr != nil {
		return domain.UnsignedCommit{}, m.generateErr
	}
	return m.unsigned, nil
}

func (m *mockActorStore) CreateRepo(ctx context.Context, did string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	m.created = did
	if m.createErr != nil {
		return domain.Commit{}, m.createErr
	}
	return m.commit, nil
}

func (m *mockActorStore) GenerateUnsigned(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string) (domain.UnsignedCommit, error) {
	m.generated = writes
	if m.generateErr != nil {
		return domain.UnsignedCommit{}, m.generateErr
	}
	return m.unsigned, nil
}

func (m *mockActorStore) ApplyWrites(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	m.applied = writes
	m.appliedSwap = swap
	if m.applyErr != nil {
		return domain.Commit{}, m.applyErr
	}
	return m.commit, nil
}

func (m *mockActorStore) Destroy(ctx context.Context, did string) error {
	m.destroyed = append(m.destroyed, did)
	return m.destroyErr
}

type mockAccountStore struct {
	accounts map[string]*domain.Account

	createdOpts *domain.CreateAccountOpts
	rootDID     string
	rootCID     string
	rootRev     string
	deleted     []string
	sessionDID  string
	createErr   error
	sessionErr  error
	updateErr   error
	deleteErr   error
}

func (m *mockAccountStore) Get(ctx context.Context, identifier string, flags domain.AvailabilityFlags) (*domain.Account, error) {
	if m.accounts == nil {
		return nil, nil
	}
	return m.accounts[identifier], nil
}

func (m *mockAccountStore) Create(ctx context.Context, opts domain.CreateAccountOpts) (domain.Session, error) {
	m.createdOpts = &opts
	if m.createErr != nil {
		return domain.Session{}, m.createErr
	}
	return domain.Session{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAccountStore) UpdateRepoRoot(ctx context.Context, did, cid, rev string) error {
	m.rootDID, m.rootCID, m.rootRev = did, cid, rev
	return m.updateErr
}

func (m *mockAccountStore) Delete(ctx context.Context, did string) error {
	m.deleted = append(m.deleted, did)
	return m.deleteErr
}

func (m *mockAccountStore) CreateSession(ctx context.Context, did string) (domain.Session, error) {
	m.sessionDID = did
	if m.sessionErr != nil {
		return domain.Session{}, m.sessionErr
	}
	return domain.Session{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type mockResolver struct {
	doc web5.IdentityDocument
	err error
}

func (m *mockResolver) ResolveDocument(ctx context.Context, address string) (web5.IdentityDocument, error) {
	if m.err != nil {
		return web5.IdentityDocument{}, m.err
	}
	return m.doc, nil
}

// mockSequencer records the order of appended events and hands out
// sequence numbers like the real log.
type mockSequencer struct {
	seq       int64
	kinds     []domain.EventKind
	compacted []int64
	failOn    domain.EventKind
	err       error
}

func (m *mockSequencer) WithExclusive(ctx context.Context, fn func(Emitter) error) error {
	return fn(m)
}

func (m *mockSequencer) next() int64 {
	m.seq++
	return m.seq
}

func (m *mockSequencer) SequenceIdentityEvt(ctx context.Context, did string, handle *string) (int64, error) {
	if m.failOn == domain.EventKindIdentity {
		return 0, m.failErr()
	}
	m.kinds = append(m.kinds, domain.EventKindIdentity)
	return m.next(), nil
}

func (m *mockSequencer) SequenceAccountEvt(ctx context.Context, did string, status domain.AccountStatus) (int64, error) {
	if m.failOn == domain.EventKindAccount {
		return 0, m.failErr()
	}
	m.kinds = append(m.kinds, domain.EventKindAccount)
	return m.next(), nil
}

func (m *mockSequencer) SequenceCommit(ctx context.Context, did string, commit domain.Commit, ops []domain.WriteResult) (int64, error) {
	if m.failOn == domain.EventKindCommit {
		return 0, m.failErr()
	}
	m.kinds = append(m.kinds, domain.EventKindCommit)
	return m.next(), nil
}

func (m *mockSequencer) SequenceSyncEvt(ctx context.Context, did string, commit domain.Commit) (int64, error) {
	if m.failOn == domain.EventKindSync {
		return 0, m.failErr()
	}
	m.kinds = append(m.kinds, domain.EventKindSync)
	return m.next(), nil
}

func (m *mockSequencer) Compact(ctx context.Context, did string, except []int64) error {
	m.compacted = except
	return nil
}

func (m *mockSequencer) failErr() error {
	if m.err != nil {
		return m.err
	}
	return domain.SequencerError{Reason: "append failed"}
}

func strPtr(s string) *string { return &s }
