package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

// ErrHandleNotAvailable is returned when the requested handle is taken.
var ErrHandleNotAvailable = errors.New("handle not available")

// ErrAddressAlreadyBound is returned at account creation when the ledger
// already holds a document for the address. Creation happens before the
// document is anchored, so an existing binding means the address belongs
// to someone else.
var ErrAddressAlreadyBound = errors.New("address already bound to an identity document")

type AccountUsecase struct {
	actor     ActorStore
	accounts  AccountStore
	resolver  Resolver
	sequencer Sequencer
}

func NewAccountUsecase(actor ActorStore, accounts AccountStore, resolver Resolver, sequencer Sequencer) *AccountUsecase {
	return &AccountUsecase{
		actor:     actor,
		accounts:  accounts,
		resolver:  resolver,
		sequencer: sequencer,
	}
}

type PreCreateAccountInput struct {
	Handle string
	DID    string
}

// PreCreateAccount validates the requested identity and returns the
// unsigned initial commit descriptor for external signing. Nothing
// durable is created.
func (uc *AccountUsecase) PreCreateAccount(ctx context.Context, input PreCreateAccountInput) (domain.UnsignedCommit, error) {
	ctx, span := tracer.Start(ctx, "Account.Usecase.PreCreateAccount")
	defer span.End()

	handle := web5.NormalizeHandle(input.Handle)
	if !web5.ValidateHandle(handle) {
		return domain.UnsignedCommit{}, domain.MalformedError{Reason: "invalid handle"}
	}

	existing, err := uc.accounts.Get(ctx, handle, domain.AvailabilityFlags{
		IncludeDeactivated: true,
		IncludeTakenDown:   true,
	})
	if err != nil {
		span.RecordError(err)
		return domain.UnsignedCommit{}, err
	}
	if existing != nil {
		return domain.UnsignedCommit{}, ErrHandleNotAvailable
	}

	unsigned, err := uc.actor.PreCreateRepo(ctx, input.DID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "pre-create repo failed"))
		return domain.UnsignedCommit{}, err
	}
	return unsigned, nil
}

type CreateAccountInput struct {
	Handle     string
	DID        string
	Address    string
	SigningKey string
	Root       web5.SignedRoot
}

type CreateAccountOutput struct {
	DID     string
	Handle  string
	Session domain.Session
}

// CreateAccount applies the externally signed initial commit and brings
// the account into existence: repo, account row, session, then the fixed
// event sequence Identity, Account, Commit, Sync, and finally the repo
// root pointer. Object-store contents are torn down on failure before the
// account row becomes the source of truth.
func (uc *AccountUsecase) CreateAccount(ctx context.Context, input CreateAccountInput) (CreateAccountOutput, error) {
	ctx, span := tracer.Start(ctx, "Account.Usecase.CreateAccount")
	defer span.End()

	handle := web5.NormalizeHandle(input.Handle)
	if !web5.ValidateHandle(handle) {
		return CreateAccountOutput{}, domain.MalformedError{Reason: "invalid handle"}
	}

	_, err := uc.resolver.ResolveDocument(ctx, input.Address)
	switch {
	case err == nil:
		return CreateAccountOutput{}, ErrAddressAlreadyBound
	case errors.Is(err, domain.ErrNotFound):
		// expected: the document is anchored after the account exists
	default:
		span.RecordError(err)
		return CreateAccountOutput{}, err
	}

	// CreateRepo persists nothing on failure, and it only succeeds when no
	// root existed for the DID. Teardown below therefore removes rows this
	// call created and never a pre-existing store.
	commit, err := uc.actor.CreateRepo(ctx, input.DID, input.Root, input.SigningKey)
	if err != nil {
		span.RecordError(errors.Wrap(err, "create repo failed"))
		return CreateAccountOutput{}, err
	}

	address := input.Address
	session, err := uc.accounts.Create(ctx, domain.CreateAccountOpts{
		DID:      input.DID,
		Handle:   handle,
		Email:    "web5Mock" + web5.GenerateRandomString(10) + "@web5.example",
		Password: web5.GenerateRandomString(16),
		RepoCID:  commit.CID,
		RepoRev:  commit.Rev,
		Address:  &address,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "create account failed"))
		if derr := uc.actor.Destroy(ctx, input.DID); derr != nil {
			slog.Error("rollback of actor store failed", "did", input.DID, "error", derr)
		}
		return CreateAccountOutput{}, err
	}

	err = uc.sequencer.WithExclusive(ctx, func(emitter Emitter) error {
		if _, err := emitter.SequenceIdentityEvt(ctx, input.DID, &handle); err != nil {
			return errors.Wrap(err, "sequence identity event failed")
		}
		if _, err := emitter.SequenceAccountEvt(ctx, input.DID, domain.AccountStatusActive); err != nil {
			return errors.Wrap(err, "sequence account event failed")
		}
		if _, err := emitter.SequenceCommit(ctx, input.DID, commit, nil); err != nil {
			return errors.Wrap(err, "sequence commit failed")
		}
		if _, err := emitter.SequenceSyncEvt(ctx, input.DID, commit); err != nil {
			return errors.Wrap(err, "sequence sync event failed")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return CreateAccountOutput{}, err
	}

	if err := uc.accounts.UpdateRepoRoot(ctx, input.DID, commit.CID, commit.Rev); err != nil {
		span.RecordError(errors.Wrap(err, "update repo root failed"))
		return CreateAccountOutput{}, err
	}

	return CreateAccountOutput{
		DID:     input.DID,
		Handle:  handle,
		Session: session,
	}, nil
}
