package services_test

import (
	"testing"
	"time"

	"folio/internal/core/domain"
	"folio/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := services.NewTokenService("secret", time.Hour, time.Hour)
	u := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)

	token, err := svc.Generate(u)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "mina@example.com", claims.Email)
	assert.Equal(t, "Mina", claims.Name)
	assert.Equal(t, domain.RoleVisitor, claims.Role)
}

func TestExpiredTokenIsDistinctFromForged(t *testing.T) {
	svc := services.NewTokenService("secret", -time.Minute, -time.Minute)
	u := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)

	token, err := svc.Generate(u)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	_, err = svc.Validate("garbage.token.value")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenSignedWithDifferentSecretIsRejected(t *testing.T) {
	issuer := services.NewTokenService("secret-a", time.Hour, time.Hour)
	verifier := services.NewTokenService("secret-b", time.Hour, time.Hour)
	u := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)

	token, err := issuer.Generate(u)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAdminTokenCarriesAdminRole(t *testing.T) {
	svc := services.NewTokenService("secret", time.Hour, time.Hour)
	admin := domain.NewUser("Owner", "owner@example.com", "hash", domain.RoleAdmin)

	token, err := svc.Generate(admin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}
