package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

const (
	testHandle  = "alice.example"
	testAddress = "ckt1qtestaddress"
	testKey     = "02aabbcc"
)

func activeAccount() *domain.Account {
	addr := testAddress
	return &domain.Account{
		DID:     testDID,
		Handle:  testHandle,
		Address: &addr,
	}
}

func boundDoc() web5.IdentityDocument {
	return web5.IdentityDocument{
		VerificationMethods: map[string]string{"atproto": testKey},
		AlsoKnownAs:         []string{"at://" + testHandle},
	}
}

func testWrites() []WriteOp {
	return []WriteOp{
		{Action: domain.WriteActionCreate, Collection: "app.web5.post", Value: json.RawMessage(`{"$type":"app.web5.post","text":"hi"}`)},
	}
}

func TestPreDirectWrites(t *testing.T) {
	actor := &mockActorStore{unsigned: domain.UnsignedCommit{DID: testDID, Rev: "r1", UnsignedBytes: "abcd"}}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	uc := NewRepoUsecase(actor, accounts, &mockResolver{}, &mockSequencer{})

	unsigned, err := uc.PreDirectWrites(context.Background(), PreDirectWritesInput{
		Repo:     testDID,
		AuthDID:  testDID,
		Validate: true,
		Writes:   testWrites(),
	})
	if err != nil {
		t.Fatalf("pre direct writes failed: %v", err)
	}
	if unsigned.UnsignedBytes == "" {
		t.Fatalf("expected unsigned bytes")
	}
	if len(actor.generated) != 1 {
		t.Fatalf("expected 1 prepared write, got %d", len(actor.generated))
	}
}

func TestPreDirectWritesUnknownRepo(t *testing.T) {
	uc := NewRepoUsecase(&mockActorStore{}, &mockAccountStore{}, &mockResolver{}, &mockSequencer{})

	_, err := uc.PreDirectWrites(context.Background(), PreDirectWritesInput{Repo: "did:web5:ghost", AuthDID: "did:web5:ghost"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPreDirectWritesAuthMismatch(t *testing.T) {
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	uc := NewRepoUsecase(&mockActorStore{}, accounts, &mockResolver{}, &mockSequencer{})

	_, err := uc.PreDirectWrites(context.Background(), PreDirectWritesInput{Repo: testDID, AuthDID: "did:web5:mallory"})
	if !errors.Is(err, ErrAuthMismatch) {
		t.Fatalf("expected auth mismatch, got %v", err)
	}
}

func TestPreDirectWritesOversizeBatchSkipsStore(t *testing.T) {
	actor := &mockActorStore{}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	uc := NewRepoUsecase(actor, accounts, &mockResolver{}, &mockSequencer{})

	key := "k"
	ops := make([]WriteOp, domain.MaxWrites+1)
	for i := range ops {
		ops[i] = WriteOp{Action: domain.WriteActionDelete, Collection: "c", RKey: &key}
	}

	_, err := uc.PreDirectWrites(context.Background(), PreDirectWritesInput{Repo: testDID, AuthDID: testDID, Writes: ops})
	if !errors.Is(err, domain.ErrRecordInvalid) {
		t.Fatalf("expected oversize rejection, got %v", err)
	}
	if actor.generated != nil {
		t.Fatalf("store must not be touched for an oversize batch")
	}
}

func TestDirectWrites(t *testing.T) {
	prev := "zPrev"
	actor := &mockActorStore{commit: domain.Commit{DID: testDID, Rev: "r2", CID: "zNew", Prev: &prev}}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	seq := &mockSequencer{}
	uc := NewRepoUsecase(actor, accounts, &mockResolver{doc: boundDoc()}, seq)

	out, err := uc.DirectWrites(context.Background(), DirectWritesInput{
		Repo:       testDID,
		AuthDID:    testDID,
		Address:    testAddress,
		SigningKey: testKey,
		Validate:   true,
		SwapCommit: &prev,
		Writes:     testWrites(),
		Root:       web5.SignedRoot{DID: testDID, Rev: "r2"},
	})
	if err != nil {
		t.Fatalf("direct writes failed: %v", err)
	}

	if out.Commit.CID != "zNew" || out.Commit.Rev != "r2" {
		t.Fatalf("unexpected commit meta: %+v", out.Commit)
	}
	if len(out.Results) != 1 || out.Results[0].ValidationStatus == nil || *out.Results[0].ValidationStatus != "valid" {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
	if len(seq.kinds) != 1 || seq.kinds[0] != domain.EventKindCommit {
		t.Fatalf("direct write must emit exactly the commit event, got %v", seq.kinds)
	}
	if accounts.rootCID != "zNew" || accounts.rootRev != "r2" {
		t.Fatalf("repo root not advanced: %s %s", accounts.rootCID, accounts.rootRev)
	}
	if actor.appliedSwap == nil || *actor.appliedSwap != prev {
		t.Fatalf("swap commit not forwarded")
	}
}

func TestDirectWritesAddressMismatch(t *testing.T) {
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	uc := NewRepoUsecase(&mockActorStore{}, accounts, &mockResolver{doc: boundDoc()}, &mockSequencer{})

	_, err := uc.DirectWrites(context.Background(), DirectWritesInput{
		Repo:    testDID,
		AuthDID: testDID,
		Address: "ckt1qother",
	})
	if !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("expected address mismatch, got %v", err)
	}
}

func TestDirectWritesForeignSigningKey(t *testing.T) {
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	uc := NewRepoUsecase(&mockActorStore{}, accounts, &mockResolver{doc: boundDoc()}, &mockSequencer{})

	_, err := uc.DirectWrites(context.Background(), DirectWritesInput{
		Repo:       testDID,
		AuthDID:    testDID,
		Address:    testAddress,
		SigningKey: "02ffff",
	})
	if !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("expected CryptoError for foreign key, got %v", err)
	}
}

func TestDirectWritesSwapMismatchSurfaces(t *testing.T) {
	actor := &mockActorStore{applyErr: domain.SwapMismatchError{Expected: "zA", Actual: "zB"}}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	seq := &mockSequencer{}
	uc := NewRepoUsecase(actor, accounts, &mockResolver{doc: boundDoc()}, seq)

	_, err := uc.DirectWrites(context.Background(), DirectWritesInput{
		Repo:       testDID,
		AuthDID:    testDID,
		Address:    testAddress,
		SigningKey: testKey,
		Writes:     testWrites(),
	})
	if !errors.Is(err, domain.ErrSwapMismatch) {
		t.Fatalf("expected SwapMismatch, got %v", err)
	}
	if len(seq.kinds) != 0 {
		t.Fatalf("no events may be emitted after a failed apply")
	}
	if accounts.rootCID != "" {
		t.Fatalf("repo root must not advance after a failed apply")
	}
}

func TestDirectWritesSequencerFailureIsFatal(t *testing.T) {
	actor := &mockActorStore{commit: domain.Commit{DID: testDID, Rev: "r1", CID: "zNew"}}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{testDID: activeAccount()}}
	seq := &mockSequencer{failOn: domain.EventKindCommit}
	uc := NewRepoUsecase(actor, accounts, &mockResolver{doc: boundDoc()}, seq)

	_, err := uc.DirectWrites(context.Background(), DirectWritesInput{
		Repo:       testDID,
		AuthDID:    testDID,
		Address:    testAddress,
		SigningKey: testKey,
		Writes:     testWrites(),
	})
	if !errors.Is(err, domain.ErrSequencer) {
		t.Fatalf("expected SequencerError, got %v", err)
	}
	if accounts.rootCID != "" {
		t.Fatalf("repo root must not advance when announcement failed")
	}
}
