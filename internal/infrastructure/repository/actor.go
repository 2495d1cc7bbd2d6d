package repository

import (
	"context"
	"encoding/hex"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/infrastructure/database/models"
	"github.com/totegamma/web5-playground/internal/utils"
)

var tracer = otel.Tracer("repository")

// ActorRepository is the per-account object store. All mutation goes
// through a single transaction holding the repo root row lock, so the
// previous-commit compare-and-swap and persistence are one atomic step.
type ActorRepository struct {
	db *gorm.DB
}

func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// dataRoot derives the content identifier of the whole path→record
// mapping. Same entries, same root, regardless of write order.
func dataRoot(entries map[string]string) (string, error) {
	raw, err := utils.SortedKVMap[string](entries).MarshalJSON()
	if err != nil {
		return "", errors.Wrap(err, "data root serialization failed")
	}
	return web5.NewCID(raw), nil
}

func (r *ActorRepository) loadEntries(tx *gorm.DB, did string) (map[string]string, error) {
	var rows []models.RepoEntry
	err := tx.Where("did = ?", did).Find(&rows).Error
	if err != nil {
		return nil, domain.StorageError{Reason: err.Error()}
	}
	entries := make(map[string]string, len(rows))
	for _, row := range rows {
		entries[row.Collection+"/"+row.RKey] = row.CID
	}
	return entries, nil
}

// applyToEntries replays the prepared batch onto the current mapping.
// Any failing operation rejects the whole batch.
func applyToEntries(entries map[string]string, writes []domain.PreparedWrite) error {
	for _, w := range writes {
		path := w.Path()
		_, exists := entries[path]
		switch w.Action {
		case domain.WriteActionCreate:
			if exists {
				return domain.RecordInvalidError{Reason: "record already exists at " + path}
			}
			entries[path] = w.CID
		case domain.WriteActionUpdate:
			if !exists {
				return domain.NotFoundError{Resource: w.URI}
			}
			entries[path] = w.CID
		case domain.WriteActionDelete:
			if !exists {
				return domain.NotFoundError{Resource: w.URI}
			}
			delete(entries, path)
		default:
			return domain.MalformedError{Reason: "unknown write action"}
		}
	}
	return nil
}

// buildUnsigned recomputes the commit descriptor for the batch against
// the current root. Deterministic: the second phase regenerates the exact
// bytes handed out in the first.
func (r *ActorRepository) buildUnsigned(tx *gorm.DB, did string, root models.RepoRoot, writes []domain.PreparedWrite, swap *string) (domain.UnsignedCommit, error) {
	if swap != nil && *swap != root.CID {
		return domain.UnsignedCommit{}, domain.SwapMismatchError{Expected: *swap, Actual: root.CID}
	}

	entries, err := r.loadEntries(tx, did)
	if err != nil {
		return domain.UnsignedCommit{}, err
	}
	if err := applyToEntries(entries, writes); err != nil {
		return domain.UnsignedCommit{}, err
	}

	data, err := dataRoot(entries)
	if err != nil {
		return domain.UnsignedCommit{}, err
	}
	rev, err := domain.NextRev(root.Rev)
	if err != nil {
		return domain.UnsignedCommit{}, domain.StorageError{Reason: err.Error()}
	}

	prev := root.CID
	return domain.NewUnsignedCommit(did, rev, data, &prev)
}

// PreCreateRepo returns the unsigned initial commit: empty mapping,
// revision r0, no predecessor. Nothing durable happens.
func (r *ActorRepository) PreCreateRepo(ctx context.Context, did string) (domain.UnsignedCommit, error) {
	ctx, span := tracer.Start(ctx, "Actor.Repository.PreCreateRepo")
	defer span.End()

	data, err := dataRoot(map[string]string{})
	if err != nil {
		return domain.UnsignedCommit{}, err
	}
	return domain.NewUnsignedCommit(did, "r0", data, nil)
}

// CreateRepo verifies the externally signed initial commit and persists
// the repo root and commit log in one transaction.
func (r *ActorRepository) CreateRepo(ctx context.Context, did string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	ctx, span := tracer.Start(ctx, "Actor.Repository.CreateRepo")
	defer span.End()

	unsigned, err := r.PreCreateRepo(ctx, did)
	if err != nil {
		return domain.Commit{}, err
	}

	commit, err := verifySignedRoot(unsigned, root, signingKey)
	if err != nil {
		span.RecordError(err)
		return domain.Commit{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log := models.CommitLog{
			DID:       did,
			Rev:       commit.Rev,
			CID:       commit.CID,
			Prev:      commit.Prev,
			Data:      commit.Data,
			Signature: commit.Signature,
		}
		if err := tx.Create(&log).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		rootRow := models.RepoRoot{
			DID: did,
			CID: commit.CID,
			Rev: commit.Rev,
		}
		if err := tx.Create(&rootRow).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Commit{}, err
	}
	return commit, nil
}

// GenerateUnsigned computes the descriptor for a batch without touching
// storage. The swap check here is advisory; the authoritative one runs
// under the row lock in ApplyWrites.
func (r *ActorRepository) GenerateUnsigned(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string) (domain.UnsignedCommit, error) {
	ctx, span := tracer.Start(ctx, "Actor.Repository.GenerateUnsigned")
	defer span.End()

	var unsigned domain.UnsignedCommit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.RepoRoot
		err := tx.Where("did = ?", did).Take(&root).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: "repo " + did}
			}
			return domain.StorageError{Reason: err.Error()}
		}

		unsigned, err = r.buildUnsigned(tx, did, root, writes, swap)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.UnsignedCommit{}, err
	}
	return unsigned, nil
}

// ApplyWrites regenerates the descriptor under the root row lock,
// verifies the round-tripped signature, and persists blocks, entries,
// commit log and the advanced root atomically.
func (r *ActorRepository) ApplyWrites(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	ctx, span := tracer.Start(ctx, "Actor.Repository.ApplyWrites")
	defer span.End()

	var commit domain.Commit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rootRow models.RepoRoot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("did = ?", did).
			Take(&rootRow).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: "repo " + did}
			}
			return domain.StorageError{Reason: err.Error()}
		}

		unsigned, err := r.buildUnsigned(tx, did, rootRow, writes, swap)
		if err != nil {
			return err
		}
		if root.Rev != unsigned.Rev || root.Data != unsigned.Data {
			// The signed descriptor was produced against a state that no
			// longer exists.
			return domain.SwapMismatchError{Expected: root.Data, Actual: unsigned.Data}
		}

		commit, err = verifySignedRoot(unsigned, root, signingKey)
		if err != nil {
			return err
		}

		for _, w := range writes {
			switch w.Action {
			case domain.WriteActionCreate, domain.WriteActionUpdate:
				block := models.RepoBlock{
					DID:     did,
					CID:     w.CID,
					Content: w.Record,
				}
				err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error
				if err != nil {
					return domain.StorageError{Reason: err.Error()}
				}

				entry := models.RepoEntry{
					DID:        did,
					Collection: w.Collection,
					RKey:       w.RKey,
					CID:        w.CID,
				}
				err = tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "did"}, {Name: "collection"}, {Name: "r_key"}},
					DoUpdates: clause.Assignments(map[string]any{"cid": w.CID}),
				}).Create(&entry).Error
				if err != nil {
					return domain.StorageError{Reason: err.Error()}
				}
			case domain.WriteActionDelete:
				err := tx.Delete(&models.RepoEntry{}, "did = ? AND collection = ? AND r_key = ?", did, w.Collection, w.RKey).Error
				if err != nil {
					return domain.StorageError{Reason: err.Error()}
				}
			}
		}

		log := models.CommitLog{
			DID:       did,
			Rev:       commit.Rev,
			CID:       commit.CID,
			Prev:      commit.Prev,
			Data:      commit.Data,
			Signature: commit.Signature,
		}
		if err := tx.Create(&log).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}

		err = tx.Model(&models.RepoRoot{}).
			Where("did = ?", did).
			Updates(map[string]any{"cid": commit.CID, "rev": commit.Rev}).Error
		if err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Commit{}, err
	}
	return commit, nil
}

// Destroy removes every trace of the account from the object store.
func (r *ActorRepository) Destroy(ctx context.Context, did string) error {
	ctx, span := tracer.Start(ctx, "Actor.Repository.Destroy")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.RepoEntry{}, "did = ?", did).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		if err := tx.Delete(&models.RepoBlock{}, "did = ?", did).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		if err := tx.Delete(&models.CommitLog{}, "did = ?", did).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		if err := tx.Delete(&models.RepoRoot{}, "did = ?", did).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// verifySignedRoot checks the custodian's signature against the
// regenerated canonical bytes and assembles the applied commit.
func verifySignedRoot(unsigned domain.UnsignedCommit, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	raw, err := hex.DecodeString(unsigned.UnsignedBytes)
	if err != nil {
		return domain.Commit{}, domain.StorageError{Reason: "canonical bytes corrupted: " + err.Error()}
	}
	sig, err := hex.DecodeString(web5.NormalizeSigHex(root.SignedBytes))
	if err != nil {
		return domain.Commit{}, domain.MalformedError{Reason: "signature decode error"}
	}
	if err := web5.VerifySignature(signingKey, web5.GetHash(raw), sig); err != nil {
		return domain.Commit{}, errors.Wrap(domain.CryptoError{Reason: "commit signature invalid"}, err.Error())
	}

	return domain.Commit{
		DID:       unsigned.DID,
		Rev:       unsigned.Rev,
		CID:       web5.NewCID(raw),
		Data:      unsigned.Data,
		Prev:      unsigned.Prev,
		Version:   unsigned.Version,
		Signature: sig,
	}, nil
}
