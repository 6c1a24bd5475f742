package accounts

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CompletePasswordResetSQL swaps the credential and consumes the reset key
// in a single statement, the key can never survive a password change even
// without the surrounding transaction.
var CompletePasswordResetSQL = `UPDATE "accounts" AS "acc"
SET
	"password_salt" = ?,
	"password_hash" = ?,
	"reset_key" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// Accounts is the account repository surface the workflows depend on.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByProviderID(ctx context.Context, provider, providerID string) (*Account, error)
	GetByProviderIDTx(ctx context.Context, tx bun.IDB, provider, providerID string) (*Account, error)
	GetByEmailAndResetKey(ctx context.Context, email, resetKey string) (*Account, error)
	ExistsWithEmail(ctx context.Context, email string) (bool, error)

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	Activate(ctx context.Context, id uuid.UUID) error
	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetResetKey(ctx context.Context, id uuid.UUID, resetKey string) error
	SetResetKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, resetKey string) error
	CompletePasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, salt, hash string) error
	UpdateLocale(ctx context.Context, id uuid.UUID, locale string) error
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accountsRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumn(ctx, tx, "email", strings.TrimSpace(email))
}

func (a *accountsRepo) GetByProviderID(ctx context.Context, provider, providerID string) (*Account, error) {
	return a.GetByProviderIDTx(ctx, a.db, provider, providerID)
}

func (a *accountsRepo) GetByProviderIDTx(ctx context.Context, tx bun.IDB, provider, providerID string) (*Account, error) {
	switch strings.ToLower(provider) {
	case ProviderFacebook:
		return a.getByColumn(ctx, tx, "facebook_id", providerID)
	case ProviderTwitter:
		return a.getByColumn(ctx, tx, "twitter_id", providerID)
	case ProviderGoogle:
		return a.getByColumn(ctx, tx, "email", providerID)
	}
	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"provider":    provider,
			"provider_id": providerID,
		})
}

func (a *accountsRepo) GetByEmailAndResetKey(ctx context.Context, email, resetKey string) (*Account, error) {
	if email == "" || resetKey == "" {
		return nil, ErrInvalidResetKey
	}

	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Where("?TableAlias.reset_key = ?", resetKey).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || isNoRows(err) {
			return nil, ErrInvalidResetKey
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) ExistsWithEmail(ctx context.Context, email string) (bool, error) {
	count, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *accountsRepo) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accountsRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateFrom(err)
		}
		return nil, err
	}
	return created, nil
}

func (a *accountsRepo) Activate(ctx context.Context, id uuid.UUID) error {
	return a.ActivateTx(ctx, a.db, id)
}

func (a *accountsRepo) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("active = ?", true).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (a *accountsRepo) SetResetKey(ctx context.Context, id uuid.UUID, resetKey string) error {
	return a.SetResetKeyTx(ctx, a.db, id, resetKey)
}

func (a *accountsRepo) SetResetKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, resetKey string) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("reset_key = ?", resetKey).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (a *accountsRepo) CompletePasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, salt, hash string) error {
	res, err := a.Repository.RawTx(ctx, tx, CompletePasswordResetSQL, salt, hash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accountsRepo) UpdateLocale(ctx context.Context, id uuid.UUID, locale string) error {
	res, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("locale = ?", locale).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (a *accountsRepo) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"column": column})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Relation("Profiles").
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
					"value":  value,
				})
		}
		return nil, err
	}

	return record, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Timezone == "" {
		record.Timezone = "UTC"
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

func isNoRows(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no rows in result set")
}

// isUniqueViolation detects the storage-level uniqueness conflict across
// the drivers we run on (SQLite in tests, Postgres in production).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "constraint failed")
}

func duplicateFrom(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryConflict, "identity already registered").
		WithTextCode(TextCodeDuplicateIdentity).
		WithCode(goerrors.CodeConflict)
}
