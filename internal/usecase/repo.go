package usecase

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

var tracer = otel.Tracer("usecase")

// ErrAuthMismatch is returned when the authenticated DID does not own the
// targeted repository.
var ErrAuthMismatch = errors.New("did is inconsistent with origin")

// ErrAccountDeactivated is returned for writes against a deactivated
// account.
var ErrAccountDeactivated = errors.New("account is deactivated")

// ErrAddressMismatch is returned when the claimed ledger address differs
// from the account's stored binding.
var ErrAddressMismatch = errors.New("address is inconsistent with the original")

type RepoUsecase struct {
	actor     ActorStore
	accounts  AccountStore
	resolver  Resolver
	sequencer Sequencer
}

func NewRepoUsecase(actor ActorStore, accounts AccountStore, resolver Resolver, sequencer Sequencer) *RepoUsecase {
	return &RepoUsecase{
		actor:     actor,
		accounts:  accounts,
		resolver:  resolver,
		sequencer: sequencer,
	}
}

// PreDirectWritesInput is the first phase of an externally-signed write:
// normalize the batch and hand back canonical unsigned commit bytes.
type PreDirectWritesInput struct {
	Repo       string
	AuthDID    string
	Validate   bool
	SwapCommit *string
	Writes     []WriteOp
}

func (uc *RepoUsecase) PreDirectWrites(ctx context.Context, input PreDirectWritesInput) (domain.UnsignedCommit, error) {
	ctx, span := tracer.Start(ctx, "Repo.Usecase.PreDirectWrites")
	defer span.End()

	account, err := uc.accounts.Get(ctx, input.Repo, domain.AvailabilityFlags{IncludeDeactivated: true})
	if err != nil {
		span.RecordError(err)
		return domain.UnsignedCommit{}, err
	}
	if account == nil {
		return domain.UnsignedCommit{}, domain.NotFoundError{Resource: "repo " + input.Repo}
	}
	if account.DeactivatedAt != nil {
		return domain.UnsignedCommit{}, ErrAccountDeactivated
	}
	if account.DID != input.AuthDID {
		return domain.UnsignedCommit{}, ErrAuthMismatch
	}

	writes, err := PrepareBatch(account.DID, input.Writes, input.Validate)
	if err != nil {
		span.RecordError(err)
		return domain.UnsignedCommit{}, err
	}

	unsigned, err := uc.actor.GenerateUnsigned(ctx, account.DID, writes, input.SwapCommit)
	if err != nil {
		span.RecordError(errors.Wrap(err, "generate unsigned commit failed"))
		return domain.UnsignedCommit{}, err
	}
	return unsigned, nil
}

// DirectWritesInput is the second phase: the externally produced signature
// comes back with the signed root, and the batch is applied atomically.
type DirectWritesInput struct {
	Repo       string
	AuthDID    string
	Address    string
	SigningKey string
	Validate   bool
	SwapCommit *string
	Writes     []WriteOp
	Root       web5.SignedRoot
}

type DirectWritesOutput struct {
	Commit  web5.CommitMeta      `json:"commit"`
	Results []domain.WriteResult `json:"results"`
}

func (uc *RepoUsecase) DirectWrites(ctx context.Context, input DirectWritesInput) (DirectWritesOutput, error) {
	ctx, span := tracer.Start(ctx, "Repo.Usecase.DirectWrites")
	defer span.End()

	account, err := uc.accounts.Get(ctx, input.Repo, domain.AvailabilityFlags{IncludeDeactivated: true})
	if err != nil {
		span.RecordError(err)
		return DirectWritesOutput{}, err
	}
	if account == nil {
		return DirectWritesOutput{}, domain.NotFoundError{Resource: "repo " + input.Repo}
	}
	if account.Address == nil || *account.Address != input.Address {
		return DirectWritesOutput{}, ErrAddressMismatch
	}

	// every externally-signed action revalidates the live binding
	doc, err := uc.resolver.ResolveDocument(ctx, input.Address)
	if err != nil {
		span.RecordError(err)
		return DirectWritesOutput{}, err
	}
	handle, ok := doc.Handle()
	if !ok {
		return DirectWritesOutput{}, domain.MalformedError{Reason: "identity document has no handle binding"}
	}
	if account.Handle != handle {
		return DirectWritesOutput{}, domain.MalformedError{Reason: "handle is inconsistent with the identity document"}
	}
	if !doc.HasSigningKey(input.SigningKey) {
		return DirectWritesOutput{}, domain.CryptoError{Reason: "signing key is inconsistent with the identity document"}
	}

	if account.DeactivatedAt != nil {
		return DirectWritesOutput{}, ErrAccountDeactivated
	}
	if account.DID != input.AuthDID {
		return DirectWritesOutput{}, ErrAuthMismatch
	}

	writes, err := PrepareBatch(account.DID, input.Writes, input.Validate)
	if err != nil {
		span.RecordError(err)
		return DirectWritesOutput{}, err
	}

	commit, err := uc.actor.ApplyWrites(ctx, account.DID, writes, input.SwapCommit, input.Root, input.SigningKey)
	if err != nil {
		span.RecordError(errors.Wrap(err, "apply writes failed"))
		return DirectWritesOutput{}, err
	}

	results := writeResults(writes, input.Validate)

	err = uc.sequencer.WithExclusive(ctx, func(emitter Emitter) error {
		_, err := emitter.SequenceCommit(ctx, account.DID, commit, results)
		return err
	})
	if err != nil {
		// committed but not announced: surfaced as fatal, see DESIGN notes
		span.RecordError(errors.Wrap(err, "sequence commit failed"))
		return DirectWritesOutput{}, err
	}

	if err := uc.accounts.UpdateRepoRoot(ctx, account.DID, commit.CID, commit.Rev); err != nil {
		span.RecordError(errors.Wrap(err, "update repo root failed"))
		return DirectWritesOutput{}, err
	}

	return DirectWritesOutput{
		Commit:  web5.CommitMeta{CID: commit.CID, Rev: commit.Rev},
		Results: results,
	}, nil
}

func writeResults(writes []domain.PreparedWrite, validated bool) []domain.WriteResult {
	var validationStatus *string
	if validated {
		status := "valid"
		validationStatus = &status
	}

	results := make([]domain.WriteResult, 0, len(writes))
	for _, write := range writes {
		switch write.Action {
		case domain.WriteActionDelete:
			results = append(results, domain.WriteResult{Action: write.Action})
		default:
			results = append(results, domain.WriteResult{
				Action:           write.Action,
				URI:              write.URI,
				CID:              write.CID,
				ValidationStatus: validationStatus,
			})
		}
	}
	return results
}
