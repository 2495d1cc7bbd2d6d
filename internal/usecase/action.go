package usecase

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/challenge"
	"github.com/totegamma/web5-playground/internal/domain"
)

// ErrInvalidLogin is returned when no account matches the claimed DID.
var ErrInvalidLogin = errors.New("invalid login")

// ActionUsecase orchestrates the privileged actions that are authorized
// purely by proving control of the ledger-held key: resolve identity,
// verify binding, verify challenge, verify signature, execute, emit.
type ActionUsecase struct {
	actor     ActorStore
	accounts  AccountStore
	resolver  Resolver
	sequencer Sequencer
	config    domain.Config
}

func NewActionUsecase(actor ActorStore, accounts AccountStore, resolver Resolver, sequencer Sequencer, config domain.Config) *ActionUsecase {
	return &ActionUsecase{
		actor:     actor,
		accounts:  accounts,
		resolver:  resolver,
		sequencer: sequencer,
		config:    config,
	}
}

type PreIndexActionInput struct {
	DID     string
	Address string
	Action  challenge.Action
}

type PreIndexActionOutput struct {
	DID     string `json:"did"`
	Handle  string `json:"handle"`
	Message string `json:"message"`
}

// PreIndexAction resolves the claimed identity and hands back the
// challenge message to sign out-of-band.
func (uc *ActionUsecase) PreIndexAction(ctx context.Context, input PreIndexActionInput) (PreIndexActionOutput, error) {
	ctx, span := tracer.Start(ctx, "Action.Usecase.PreIndexAction")
	defer span.End()

	did := strings.ToLower(input.DID)

	handle, err := uc.resolveHandle(ctx, input.Address, input.Action)
	if err != nil {
		span.RecordError(err)
		return PreIndexActionOutput{}, err
	}

	message, err := challenge.Generate(uc.config.FQDN, input.Address, handle, input.Action)
	if err != nil {
		span.RecordError(err)
		return PreIndexActionOutput{}, err
	}

	return PreIndexActionOutput{
		DID:     did,
		Handle:  handle,
		Message: message,
	}, nil
}

type IndexActionInput struct {
	DID         string
	Address     string
	Message     string
	SigningKey  string
	SignedBytes string
	Action      challenge.Action
}

type IndexActionOutput struct {
	DID     string          `json:"did"`
	Handle  string          `json:"handle"`
	Email   string          `json:"email,omitempty"`
	Session *domain.Session `json:"-"`
	Deleted bool            `json:"deleted,omitempty"`
}

// IndexAction verifies the returned challenge signature and executes the
// privileged action. No state changes happen before all checks pass.
func (uc *ActionUsecase) IndexAction(ctx context.Context, input IndexActionInput) (IndexActionOutput, error) {
	ctx, span := tracer.Start(ctx, "Action.Usecase.IndexAction")
	defer span.End()

	did := strings.ToLower(input.DID)

	account, err := uc.accounts.Get(ctx, did, domain.AvailabilityFlags{
		IncludeDeactivated: true,
		IncludeTakenDown:   true,
	})
	if err != nil {
		span.RecordError(err)
		return IndexActionOutput{}, err
	}
	if account == nil {
		return IndexActionOutput{}, ErrInvalidLogin
	}
	if account.Address == nil || *account.Address != input.Address {
		return IndexActionOutput{}, ErrAddressMismatch
	}

	handle, err := uc.verifyBinding(ctx, account, input)
	if err != nil {
		span.RecordError(err)
		return IndexActionOutput{}, err
	}

	ts, err := challenge.ExtractTimestamp(input.Message)
	if err != nil {
		return IndexActionOutput{}, errors.Wrap(domain.MalformedError{Reason: "challenge has no usable timestamp"}, err.Error())
	}
	if !challenge.CheckFreshness(ts, time.Now()) {
		return IndexActionOutput{}, domain.MalformedError{Reason: "sign message timeout"}
	}
	if !challenge.CheckStatement(input.Message, input.Action) {
		return IndexActionOutput{}, domain.MalformedError{Reason: "message statement check error"}
	}

	sig, err := hex.DecodeString(web5.NormalizeSigHex(input.SignedBytes))
	if err != nil {
		return IndexActionOutput{}, errors.Wrap(domain.MalformedError{Reason: "signature decode error"}, err.Error())
	}
	if err := web5.VerifySignature(input.SigningKey, web5.GetHash([]byte(input.Message)), sig); err != nil {
		return IndexActionOutput{}, errors.Wrap(domain.CryptoError{Reason: "challenge signature invalid"}, err.Error())
	}

	switch input.Action {
	case challenge.ActionCreateSession:
		session, err := uc.accounts.CreateSession(ctx, account.DID)
		if err != nil {
			span.RecordError(errors.Wrap(err, "create session failed"))
			return IndexActionOutput{}, err
		}
		return IndexActionOutput{
			DID:     account.DID,
			Handle:  handle,
			Email:   account.Email,
			Session: &session,
		}, nil

	case challenge.ActionDeleteAccount:
		if err := uc.actor.Destroy(ctx, account.DID); err != nil {
			span.RecordError(errors.Wrap(err, "destroy actor store failed"))
			return IndexActionOutput{}, err
		}
		if err := uc.accounts.Delete(ctx, account.DID); err != nil {
			span.RecordError(errors.Wrap(err, "delete account failed"))
			return IndexActionOutput{}, err
		}
		err = uc.sequencer.WithExclusive(ctx, func(emitter Emitter) error {
			seq, err := emitter.SequenceAccountEvt(ctx, account.DID, domain.AccountStatusDeleted)
			if err != nil {
				return errors.Wrap(err, "sequence account event failed")
			}
			return emitter.Compact(ctx, account.DID, []int64{seq})
		})
		if err != nil {
			span.RecordError(err)
			return IndexActionOutput{}, err
		}
		return IndexActionOutput{
			DID:     account.DID,
			Handle:  handle,
			Deleted: true,
		}, nil

	default:
		return IndexActionOutput{}, domain.MalformedError{Reason: "unknown action"}
	}
}

// resolveHandle maps an address to its handle binding. A missing document
// is tolerated only while deleting an account, where the ledger entry may
// already be gone.
func (uc *ActionUsecase) resolveHandle(ctx context.Context, address string, action challenge.Action) (string, error) {
	doc, err := uc.resolver.ResolveDocument(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && action == challenge.ActionDeleteAccount {
			return domain.DeletedHandlePlaceholder, nil
		}
		return "", err
	}
	handle, ok := doc.Handle()
	if !ok {
		return "", domain.MalformedError{Reason: "identity document has no handle binding"}
	}
	return handle, nil
}

// verifyBinding checks the live document against the stored account:
// handle must match and the presented signing key must be one of the
// document's verification methods.
func (uc *ActionUsecase) verifyBinding(ctx context.Context, account *domain.Account, input IndexActionInput) (string, error) {
	doc, err := uc.resolver.ResolveDocument(ctx, input.Address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && input.Action == challenge.ActionDeleteAccount {
			return domain.DeletedHandlePlaceholder, nil
		}
		return "", err
	}

	handle, ok := doc.Handle()
	if !ok {
		return "", domain.MalformedError{Reason: "identity document has no handle binding"}
	}
	if account.Handle != handle {
		return "", domain.MalformedError{Reason: "handle is inconsistent with the identity document"}
	}
	if !doc.HasSigningKey(input.SigningKey) {
		return "", domain.CryptoError{Reason: "signing key is inconsistent with the identity document"}
	}
	return handle, nil
}
