package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joyebene/unimart-backend/internal/core/domain"
)

func TestLoginIssuesSession(t *testing.T) {
	f := newFixture(t)
	registered := f.registerVerified(t, "pw1")

	result, err := f.svc.Login(context.Background(), "a@u.edu", "pw1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, result.Account.ID)
	assert.Empty(t, result.Account.PasswordHash)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), result.ExpiresAt)

	accountID, err := f.sessions.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, accountID)
}

func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "pw1")

	_, unknown := f.svc.Login(context.Background(), "nobody@u.edu", "pw1")
	_, wrong := f.svc.Login(context.Background(), "a@u.edu", "wrong")

	require.ErrorIs(t, unknown, ErrInvalidCredentials)
	require.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, domain.KindOf(unknown), domain.KindOf(wrong))
	assert.Equal(t, domain.MessageOf(unknown), domain.MessageOf(wrong))
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterInput{FullName: "Alice", Email: "a@u.edu", Password: "pw1"})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "a@u.edu", "pw1")
	require.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = f.svc.Login(context.Background(), "a@u.edu", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials, "credential check comes before verification state")
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	f := newFixture(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, f.store.Create(context.Background(), domain.Account{
		ID:           "legacy-1",
		FullName:     "Legacy",
		Email:        "legacy@u.edu",
		PasswordHash: string(legacy),
		IsVerified:   true,
	}))

	_, err = f.svc.Login(context.Background(), "legacy@u.edu", "pw1")
	require.NoError(t, err)

	stored := f.stored(t, "legacy@u.edu")
	assert.NotEqual(t, string(legacy), stored.PasswordHash)
	assert.False(t, f.hasher.NeedsRehash(stored.PasswordHash))

	_, err = f.svc.Login(context.Background(), "legacy@u.edu", "pw1")
	require.NoError(t, err, "upgraded hash still verifies")
}

func TestAuthenticateDistinguishesFailures(t *testing.T) {
	f := newFixture(t)
	registered := f.registerVerified(t, "pw1")
	result, err := f.svc.Login(context.Background(), "a@u.edu", "pw1")
	require.NoError(t, err)

	account, err := f.svc.Authenticate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
	assert.Empty(t, account.PasswordHash)

	_, err = f.svc.Authenticate(context.Background(), "  ")
	requireKind(t, err, domain.KindUnauthorized)

	_, err = f.svc.Authenticate(context.Background(), result.Token+"x")
	requireKind(t, err, domain.KindInvalidToken)

	orphan, _, err := f.sessions.Issue("deleted-account")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), orphan)
	requireKind(t, err, domain.KindAccountNotFound)

	f.clock.Advance(7 * 24 * time.Hour)
	_, err = f.svc.Authenticate(context.Background(), result.Token)
	requireKind(t, err, domain.KindInvalidToken)
}
