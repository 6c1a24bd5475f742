package federated

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-accounts"
	"github.com/uptrace/bun"
)

// Result contains the resolved account and how it was reached.
type Result struct {
	Account *accounts.Account
	IsNew   bool
	Linked  bool
}

// Merger reconciles a verified provider claim against the account store:
// provider id lookup first, email fallback second, create last. Attributes
// the account is missing are filled from the claim, attributes already set
// are never overwritten.
type Merger struct {
	repo   accounts.RepositoryManager
	logger accounts.Logger
}

// NewMerger creates a merger over the account repositories.
func NewMerger(repo accounts.RepositoryManager, logger accounts.Logger) *Merger {
	if logger == nil {
		logger = accounts.DefaultLogger()
	}
	return &Merger{
		repo:   repo,
		logger: logger,
	}
}

// Resolve maps the claim onto exactly one account. The whole resolution
// runs in one transaction so a concurrent login with the same claim cannot
// produce two accounts.
func (m *Merger) Resolve(ctx context.Context, claim *Claim) (*Result, error) {
	if claim.Empty() {
		return nil, ErrEmptyClaim
	}

	var result *Result

	err := m.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		found, err := m.repo.Accounts().GetByProviderIDTx(ctx, tx, claim.Provider, claim.ProviderUserID)
		if err == nil {
			result, err = m.refresh(ctx, tx, found, claim)
			return err
		}
		if !accounts.IsNotFound(err) {
			return err
		}

		if claim.Email != "" {
			found, err = m.repo.Accounts().GetByEmailTx(ctx, tx, claim.Email)
			if err == nil {
				result, err = m.link(ctx, tx, found, claim)
				return err
			}
			if !accounts.IsNotFound(err) {
				return err
			}
		}

		result, err = m.create(ctx, tx, claim)
		return err
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// refresh updates the provider profile of an account already linked to the
// claim's provider identity.
func (m *Merger) refresh(ctx context.Context, tx bun.Tx, account *accounts.Account, claim *Claim) (*Result, error) {
	mergeClaim(account, claim)

	if _, err := m.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := m.upsertProfile(ctx, tx, account, claim); err != nil {
		return nil, err
	}

	return &Result{Account: account}, nil
}

// link attaches the claim's provider identity to an account matched by
// email.
func (m *Merger) link(ctx context.Context, tx bun.Tx, account *accounts.Account, claim *Claim) (*Result, error) {
	account.SetProviderID(claim.Provider, claim.ProviderUserID)
	mergeClaim(account, claim)

	if _, err := m.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := m.upsertProfile(ctx, tx, account, claim); err != nil {
		return nil, err
	}

	m.logger.Info("linked %s identity to account %s", claim.Provider, account.ID)

	return &Result{Account: account, Linked: true}, nil
}

// create builds a fresh account seeded from the claim. Federated accounts
// skip activation, the provider already vouched for the identity.
func (m *Merger) create(ctx context.Context, tx bun.Tx, claim *Claim) (*Result, error) {
	account := &accounts.Account{
		Email:  claim.Email,
		Name:   claim.Name,
		Locale: claim.Locale,
		Active: true,
	}
	account.SetProviderID(claim.Provider, claim.ProviderUserID)

	created, err := m.repo.Accounts().CreateTx(ctx, tx, account)
	if err != nil {
		return nil, err
	}

	if err := m.upsertProfile(ctx, tx, created, claim); err != nil {
		return nil, err
	}

	m.logger.Info("created account %s from %s identity", created.ID, claim.Provider)

	return &Result{Account: created, IsNew: true}, nil
}

func (m *Merger) upsertProfile(ctx context.Context, tx bun.Tx, account *accounts.Account, claim *Claim) error {
	return m.repo.ProviderProfiles().UpsertTx(ctx, tx, &accounts.ProviderProfile{
		AccountID:      account.ID,
		Provider:       claim.Provider,
		ProviderUserID: claim.ProviderUserID,
		DisplayName:    claim.Name,
		PictureURL:     claim.PictureURL,
		Username:       claim.Username,
		ProfileURL:     claim.ProfileURL,
	})
}

// mergeClaim fills account attributes the claim knows and the account is
// missing. Existing values win.
func mergeClaim(account *accounts.Account, claim *Claim) {
	if account.Email == "" && claim.Email != "" {
		account.Email = claim.Email
	}
	if account.Name == "" && claim.Name != "" {
		account.Name = claim.Name
	}
	if account.Locale == "" && claim.Locale != "" {
		account.Locale = claim.Locale
	}
	if account.ProviderID(claim.Provider) == "" {
		account.SetProviderID(claim.Provider, claim.ProviderUserID)
	}
}
