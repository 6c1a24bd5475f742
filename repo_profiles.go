package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderProfiles stores the per-provider display attributes reported by
// federated logins.
type ProviderProfiles interface {
	FindByProviderID(ctx context.Context, provider, providerUserID string) (*ProviderProfile, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]*ProviderProfile, error)
	Upsert(ctx context.Context, profile *ProviderProfile) error
	UpsertTx(ctx context.Context, tx bun.IDB, profile *ProviderProfile) error
}

type providerProfiles struct {
	db *bun.DB
}

func NewProviderProfilesRepository(db *bun.DB) ProviderProfiles {
	return &providerProfiles{db: db}
}

func (r *providerProfiles) FindByProviderID(ctx context.Context, provider, providerUserID string) (*ProviderProfile, error) {
	profile := &ProviderProfile{}
	err := r.db.NewSelect().
		Model(profile).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"provider":         provider,
					"provider_user_id": providerUserID,
				})
		}
		return nil, err
	}
	return profile, nil
}

func (r *providerProfiles) FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]*ProviderProfile, error) {
	var profiles []*ProviderProfile
	err := r.db.NewSelect().
		Model(&profiles).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return []*ProviderProfile{}, nil
		}
		return nil, err
	}
	return profiles, nil
}

func (r *providerProfiles) Upsert(ctx context.Context, profile *ProviderProfile) error {
	return r.UpsertTx(ctx, r.db, profile)
}

func (r *providerProfiles) UpsertTx(ctx context.Context, tx bun.IDB, profile *ProviderProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now()
	profile.UpdatedAt = &now

	_, err := tx.NewInsert().
		Model(profile).
		On("CONFLICT (provider, provider_user_id) DO UPDATE").
		Set("account_id = EXCLUDED.account_id").
		Set("display_name = EXCLUDED.display_name").
		Set("picture_url = EXCLUDED.picture_url").
		Set("username = EXCLUDED.username").
		Set("profile_url = EXCLUDED.profile_url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}
