package accounts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT,
    company_name TEXT,
    email TEXT,
    facebook_id TEXT,
    twitter_id TEXT,
    password_salt TEXT,
    password_hash TEXT,
    active BOOLEAN NOT NULL DEFAULT false,
    suspended BOOLEAN NOT NULL DEFAULT false,
    locale TEXT,
    timezone TEXT NOT NULL DEFAULT 'UTC',
    reset_key TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP,
    CONSTRAINT uq_accounts_email UNIQUE (email),
    CONSTRAINT uq_accounts_facebook_id UNIQUE (facebook_id),
    CONSTRAINT uq_accounts_twitter_id UNIQUE (twitter_id)
);`
	sqliteCreateProviderProfiles = `CREATE TABLE provider_profiles (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    provider_user_id TEXT NOT NULL,
    display_name TEXT,
    picture_url TEXT,
    username TEXT,
    profile_url TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    CONSTRAINT uq_provider_profiles_provider_id UNIQUE (provider, provider_user_id)
);`
)

func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateAccounts)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateProviderProfiles)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return bunDB, cleanup
}

func setupAccountsRepo(t *testing.T) (Accounts, *bun.DB, func()) {
	t.Helper()
	bunDB, cleanup := setupTestDB(t)
	return NewAccountsRepository(bunDB), bunDB, cleanup
}

func TestAccountsRepositoryCreateAndGetByEmail(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, &Account{
		Name:   "Pepe Rone",
		Email:  "pepe@example.com",
		Active: true,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "UTC", created.Timezone)

	found, err := repo.GetByEmail(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Pepe Rone", found.Name)
	assert.True(t, found.Active)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAccountsRepositoryCreateRequiresIdentity(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	_, err := repo.Create(context.Background(), &Account{Name: "No Channels"})
	require.Error(t, err)
}

func TestAccountsRepositoryDuplicateEmail(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.Create(ctx, &Account{Name: "First", Email: "dupe@example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &Account{Name: "Second", Email: "dupe@example.com"})
	require.Error(t, err)
	assert.True(t, IsDuplicateIdentity(err))
}

func TestAccountsRepositoryExistsWithEmail(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	exists, err := repo.ExistsWithEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Create(ctx, &Account{Name: "Real", Email: "real@example.com"})
	require.NoError(t, err)

	exists, err = repo.ExistsWithEmail(ctx, "real@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountsRepositoryGetByProviderID(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, &Account{
		Name:       "Fed",
		Email:      "fed@example.com",
		FacebookID: "fb-123",
	})
	require.NoError(t, err)

	found, err := repo.GetByProviderID(ctx, ProviderFacebook, "fb-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// Google identities are keyed by email.
	found, err = repo.GetByProviderID(ctx, ProviderGoogle, "fed@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByProviderID(ctx, ProviderTwitter, "tw-999")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = repo.GetByProviderID(ctx, "myspace", "m-1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAccountsRepositoryActivate(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, &Account{Name: "Dormant", Email: "dormant@example.com"})
	require.NoError(t, err)
	require.False(t, created.Active)

	err = repo.Activate(ctx, created.ID)
	require.NoError(t, err)

	found, err := repo.GetByEmail(ctx, "dormant@example.com")
	require.NoError(t, err)
	assert.True(t, found.Active)
}

func TestAccountsRepositoryResetKeyFlow(t *testing.T) {
	repo, bunDB, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, &Account{Name: "Forgetful", Email: "forgot@example.com"})
	require.NoError(t, err)

	key, err := NewResetKey()
	require.NoError(t, err)
	err = repo.SetResetKey(ctx, created.ID, key)
	require.NoError(t, err)

	found, err := repo.GetByEmailAndResetKey(ctx, "forgot@example.com", key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByEmailAndResetKey(ctx, "forgot@example.com", "wrong-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResetKey)

	_, err = repo.GetByEmailAndResetKey(ctx, "forgot@example.com", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResetKey)

	err = bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.CompletePasswordResetTx(ctx, tx, created.ID, "newsalt", "newhash")
	})
	require.NoError(t, err)

	// The reset key only authorizes a single password change.
	_, err = repo.GetByEmailAndResetKey(ctx, "forgot@example.com", key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResetKey)

	found, err = repo.GetByEmail(ctx, "forgot@example.com")
	require.NoError(t, err)
	assert.Equal(t, "newsalt", found.PasswordSalt)
	assert.Equal(t, "newhash", found.PasswordHash)
	assert.Empty(t, found.ResetKey)
}

func TestAccountsRepositoryUpdateLocale(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, &Account{Name: "Traveler", Email: "traveler@example.com"})
	require.NoError(t, err)

	err = repo.UpdateLocale(ctx, created.ID, "es_ES")
	require.NoError(t, err)

	found, err := repo.GetByEmail(ctx, "traveler@example.com")
	require.NoError(t, err)
	assert.Equal(t, "es_ES", found.Locale)
}
