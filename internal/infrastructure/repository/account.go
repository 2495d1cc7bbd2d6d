package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/infrastructure/database/models"
	"github.com/totegamma/web5-playground/jwt"
)

const (
	accessTokenLifetime  = 30 * time.Minute
	refreshTokenLifetime = 90 * 24 * time.Hour
)

type AccountRepository struct {
	db     *gorm.DB
	mc     *memcache.Client
	config domain.Config
}

func NewAccountRepository(db *gorm.DB, mc *memcache.Client, config domain.Config) *AccountRepository {
	return &AccountRepository{
		db:     db,
		mc:     mc,
		config: config,
	}
}

func handleCacheKey(handle string) string {
	return "handle:" + handle
}

// Get looks up an account by DID or handle. A missing account is
// (nil, nil); an existing one filtered out by flags is too.
func (r *AccountRepository) Get(ctx context.Context, identifier string, flags domain.AvailabilityFlags) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Account.Repository.Get")
	defer span.End()

	did := identifier
	if !strings.HasPrefix(identifier, "did:") {
		resolved, err := r.handleToDID(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return nil, nil
		}
		did = resolved
	}

	var row models.Account
	err := r.db.WithContext(ctx).Where("did = ?", did).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, domain.StorageError{Reason: err.Error()}
	}

	account := accountFromModel(row)
	if !account.Available(flags) {
		return nil, nil
	}
	return &account, nil
}

func (r *AccountRepository) handleToDID(ctx context.Context, handle string) (string, error) {
	item, err := r.mc.Get(handleCacheKey(handle))
	if err == nil {
		return string(item.Value), nil
	}

	var row models.Account
	err = r.db.WithContext(ctx).Select("did").Where("handle = ?", handle).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", domain.StorageError{Reason: err.Error()}
	}

	r.mc.Set(&memcache.Item{
		Key:        handleCacheKey(handle),
		Value:      []byte(row.DID),
		Expiration: 300,
	})
	return row.DID, nil
}

// Create persists the account row, points the repo root at the initial
// commit, and mints the first session.
func (r *AccountRepository) Create(ctx context.Context, opts domain.CreateAccountOpts) (domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Account.Repository.Create")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return domain.Session{}, errors.Wrap(err, "password hashing failed")
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Account{
			DID:          opts.DID,
			Handle:       opts.Handle,
			Address:      opts.Address,
			Email:        opts.Email,
			PasswordHash: string(hash),
		}
		if err := tx.Create(&row).Error; err != nil {
			return domain.StorageError{Reason: err.Error()}
		}

		root := models.RepoRoot{
			DID: opts.DID,
			CID: opts.RepoCID,
			Rev: opts.RepoRev,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "did"}},
			DoUpdates: clause.Assignments(map[string]any{"cid": opts.RepoCID, "rev": opts.RepoRev}),
		}).Create(&root).Error
		if err != nil {
			return domain.StorageError{Reason: err.Error()}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}

	r.mc.Delete(handleCacheKey(opts.Handle))

	return r.mintSession(opts.DID)
}

// UpdateRepoRoot advances the root pointer after a successfully
// sequenced commit.
func (r *AccountRepository) UpdateRepoRoot(ctx context.Context, did, cid, rev string) error {
	ctx, span := tracer.Start(ctx, "Account.Repository.UpdateRepoRoot")
	defer span.End()

	root := models.RepoRoot{DID: did, CID: cid, Rev: rev}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "did"}},
		DoUpdates: clause.Assignments(map[string]any{"cid": cid, "rev": rev}),
	}).Create(&root).Error
	if err != nil {
		span.RecordError(err)
		return domain.StorageError{Reason: err.Error()}
	}
	return nil
}

// Delete removes the account row. Object store teardown is the actor
// repository's job.
func (r *AccountRepository) Delete(ctx context.Context, did string) error {
	ctx, span := tracer.Start(ctx, "Account.Repository.Delete")
	defer span.End()

	var row models.Account
	err := r.db.WithContext(ctx).Where("did = ?", did).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "account " + did}
		}
		return domain.StorageError{Reason: err.Error()}
	}

	if err := r.db.WithContext(ctx).Delete(&models.Account{}, "did = ?", did).Error; err != nil {
		span.RecordError(err)
		return domain.StorageError{Reason: err.Error()}
	}

	r.mc.Delete(handleCacheKey(row.Handle))
	return nil
}

// CreateSession mints a fresh access/refresh token pair.
func (r *AccountRepository) CreateSession(ctx context.Context, did string) (domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Account.Repository.CreateSession")
	defer span.End()

	session, err := r.mintSession(did)
	if err != nil {
		span.RecordError(err)
	}
	return session, err
}

func (r *AccountRepository) mintSession(did string) (domain.Session, error) {
	now := time.Now()

	access, err := jwt.Create(jwt.Claims{
		Issuer:         r.config.ServerKey,
		Subject:        did,
		Audience:       r.config.FQDN,
		Scope:          jwt.ScopeAccess,
		ExpirationTime: strconv.FormatInt(now.Add(accessTokenLifetime).Unix(), 10),
		IssuedAt:       strconv.FormatInt(now.Unix(), 10),
		JWTID:          uuid.New().String(),
	}, r.config.PrivateKey)
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "access token mint failed")
	}

	refresh, err := jwt.Create(jwt.Claims{
		Issuer:         r.config.ServerKey,
		Subject:        did,
		Audience:       r.config.FQDN,
		Scope:          jwt.ScopeRefresh,
		ExpirationTime: strconv.FormatInt(now.Add(refreshTokenLifetime).Unix(), 10),
		IssuedAt:       strconv.FormatInt(now.Unix(), 10),
		JWTID:          uuid.New().String(),
	}, r.config.PrivateKey)
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "refresh token mint failed")
	}

	return domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func accountFromModel(row models.Account) domain.Account {
	return domain.Account{
		DID:              row.DID,
		Handle:           row.Handle,
		Address:          row.Address,
		Email:            row.Email,
		CreatedAt:        row.CDate,
		DeactivatedAt:    row.DeactivatedAt,
		TakendownAt:      row.TakendownAt,
		EmailConfirmedAt: row.EmailConfirmedAt,
	}
}
