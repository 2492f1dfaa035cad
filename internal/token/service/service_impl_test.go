package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/config"
	"github.com/globalping/backoffice/internal/testdb"
	"github.com/globalping/backoffice/internal/token/domain"
	tokenrepository "github.com/globalping/backoffice/internal/token/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTokenService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		Config: config.Config{TokenSalt: "salt"},
		DB:     db,
		Log:    zaptest.NewLogger(t),
		GenID:  node,
		Clock:  fake,
		Repo:   tokenrepository.Provide(),
	})
	return svc, db, fake
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, db, fake := setupTokenService(t)
	ctx := context.Background()
	userID := snowflake.ID(42)

	token, plaintext, err := svc.Create(ctx, domain.CreateRequest{
		UserID: userID,
		Name:   "ci token",
	})
	require.NoError(t, err)
	require.NotEmpty(t, plaintext)
	require.NotEqual(t, plaintext, token.Value)
	require.Equal(t, domain.TypeAccess, token.TokenType)

	resolved, err := svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	require.Equal(t, token.ID, resolved.ID)
	require.Equal(t, userID, resolved.UserID)

	var lastUsed *time.Time
	require.NoError(t, db.Raw(`SELECT last_used FROM tokens WHERE id = ?`, token.ID).Scan(&lastUsed).Error)
	require.NotNil(t, lastUsed)
	require.True(t, lastUsed.Equal(fake.Now()))

	_, err = svc.Authenticate(ctx, "bogus")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	svc, _, fake := setupTokenService(t)
	ctx := context.Background()

	expire := fake.Now().Add(24 * time.Hour)
	_, plaintext, err := svc.Create(ctx, domain.CreateRequest{
		UserID: 1,
		Name:   "short lived",
		Expire: &expire,
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)

	fake.Advance(25 * time.Hour)
	_, err = svc.Authenticate(ctx, plaintext)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := setupTokenService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, domain.CreateRequest{UserID: 1, Name: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, _, err = svc.Create(ctx, domain.CreateRequest{
		UserID:  1,
		Name:    "bad origins",
		Origins: []string{"ftp://example.com"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidOrigin)

	_, _, err = svc.Create(ctx, domain.CreateRequest{
		UserID:  1,
		Name:    "bad origins",
		Origins: []string{"example.com"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidOrigin)
}

func TestCreateNormalizesOrigins(t *testing.T) {
	svc, _, _ := setupTokenService(t)
	ctx := context.Background()

	token, _, err := svc.Create(ctx, domain.CreateRequest{
		UserID: 1,
		Name:   "dashboard",
		Origins: []string{
			"https://Example.COM/some/path?x=1",
			"https://example.com",
			"http://localhost:3000",
			"  ",
		},
	})
	require.NoError(t, err)
	require.JSONEq(t, `["https://example.com","http://localhost:3000"]`, string(token.Origins))
}

func TestDeleteOnlyOwnTokens(t *testing.T) {
	svc, _, _ := setupTokenService(t)
	ctx := context.Background()

	token, _, err := svc.Create(ctx, domain.CreateRequest{UserID: 1, Name: "mine"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, 2, token.ID), domain.ErrTokenNotFound)
	require.NoError(t, svc.Delete(ctx, 1, token.ID))
	require.ErrorIs(t, svc.Delete(ctx, 1, token.ID), domain.ErrTokenNotFound)
}

func TestListApplicationsAndRevoke(t *testing.T) {
	svc, db, fake := setupTokenService(t)
	ctx := context.Background()
	userID := snowflake.ID(7)
	appID := snowflake.ID(1001)

	require.NoError(t, db.Exec(
		`INSERT INTO apps (id, name, owner_name, owner_url) VALUES (?, 'Dash', 'Globalping', 'https://globalping.io')`,
		appID,
	).Error)

	for _, name := range []string{"session-1", "session-2"} {
		_, _, err := svc.Create(ctx, domain.CreateRequest{
			UserID: userID,
			Name:   name,
			AppID:  &appID,
		})
		require.NoError(t, err)
		fake.Advance(time.Minute)
	}
	// A personal token with no app does not show up as an application.
	_, _, err := svc.Create(ctx, domain.CreateRequest{UserID: userID, Name: "personal"})
	require.NoError(t, err)

	apps, err := svc.ListApplications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, appID, apps[0].ID)
	require.Equal(t, "Dash", apps[0].Name)

	require.NoError(t, svc.Revoke(ctx, userID, appID))

	apps, err = svc.ListApplications(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, apps)

	tokens, err := svc.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "personal", tokens[0].Name)

	require.ErrorIs(t, svc.Revoke(ctx, userID, appID), domain.ErrNothingRevoked)
}

func TestSecretHashing(t *testing.T) {
	hashed, err := HashSecret("client-secret")
	require.NoError(t, err)
	require.NotEqual(t, "client-secret", hashed)

	app := &domain.App{Secrets: []byte(`["` + hashed + `"]`)}
	require.True(t, VerifySecret(app, "client-secret"))
	require.False(t, VerifySecret(app, "wrong"))
	require.False(t, VerifySecret(&domain.App{}, "anything"))
}
