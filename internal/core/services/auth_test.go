package services_test

import (
	"context"
	"testing"
	"time"

	"folio/internal/config"
	"folio/internal/core/domain"
	"folio/internal/core/services"
	"folio/internal/plugins/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T) (*services.AuthService, *memory.Store, *fakeMailer) {
	t.Helper()
	store := memory.NewStore()
	mail := &fakeMailer{}
	tokens := services.NewTokenService("test-secret", 7*24*time.Hour, 24*time.Hour)
	cfg := &config.AuthConfig{
		AdminEmail:    "owner@example.com",
		AdminPassword: "operator-pass",
		AdminName:     "Owner",
	}
	svc := services.NewAuthService(discardLogger(), store, tokens, mail, memory.Tx{}, cfg)
	return svc, store, mail
}

func TestRegisterNewVisitor(t *testing.T) {
	svc, store, mail := newAuthFixture(t)

	result, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode:  services.ModeRegister,
		Name:  "Mina",
		Email: "Mina@Example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.NotEmpty(t, result.Token)
	assert.Len(t, result.Password, 8)

	stored, err := store.GetUserByEmail(context.Background(), "mina@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleVisitor, stored.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(stored.PasswordHash), []byte(result.Password)),
		"stored hash must match the emailed password")

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "password", mail.sent[0].Kind)
	assert.Equal(t, result.Password, mail.sent[0].Payload)
}

func TestRegisterExistingEmailReturnsNoToken(t *testing.T) {
	svc, _, mail := newAuthFixture(t)
	first, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)

	second, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)
	assert.False(t, second.IsNewUser)
	assert.Empty(t, second.Token)
	assert.Empty(t, second.Password)
	assert.Equal(t, first.User.ID, second.User.ID)

	require.Len(t, mail.sent, 2)
	assert.Equal(t, "reminder", mail.sent[1].Kind)
}

func TestRegisterCompletesContactOnlyAccount(t *testing.T) {
	svc, store, mail := newAuthFixture(t)
	// The contact form creates accounts without a credential.
	contact := domain.NewUser("Mina", "mina@example.com", "", domain.RoleVisitor)
	require.NoError(t, store.CreateUser(context.Background(), contact))

	result, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.NotEmpty(t, result.Token)
	assert.Len(t, result.Password, 8)
	assert.Equal(t, contact.ID, result.User.ID, "the existing record gains the credential")

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "password", mail.sent[0].Kind)

	login, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeLogin, Email: "mina@example.com", Password: result.Password,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}

// staleLookupUsers misses its first GetUserByEmail, reproducing a
// concurrent registration that inserts between lookup and create.
type staleLookupUsers struct {
	domain.UserRepository
	misses int
}

func (r *staleLookupUsers) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.misses > 0 {
		r.misses--
		return nil, domain.ErrUserNotFound
	}
	return r.UserRepository.GetUserByEmail(ctx, email)
}

func TestRegisterRaceFallsBackToExistingAccount(t *testing.T) {
	store := memory.NewStore()
	mail := &fakeMailer{}
	tokens := services.NewTokenService("test-secret", 7*24*time.Hour, 24*time.Hour)
	users := &staleLookupUsers{UserRepository: store, misses: 1}
	svc := services.NewAuthService(discardLogger(), users, tokens, mail, memory.Tx{}, &config.AuthConfig{})

	winner := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)
	require.NoError(t, store.CreateUser(context.Background(), winner))

	result, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err, "losing the insert race is not an internal error")
	assert.False(t, result.IsNewUser)
	assert.Empty(t, result.Token)
	assert.Equal(t, winner.ID, result.User.ID)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "reminder", mail.sent[0].Kind)
}

func TestLoginWrongPasswordNeverIssuesToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)

	result, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeLogin, Email: "mina@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, domain.ErrBadCredentials)
	assert.Nil(t, result)
}

func TestLoginUnknownEmailIsNotFound(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeLogin, Email: "nobody@example.com", Password: "whatever",
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLoginWithGeneratedPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	reg, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)

	login, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeLogin, Email: "mina@example.com", Password: reg.Password,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.False(t, login.IsNewUser)
}

func TestAuthenticateRejectsUnknownMode(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: "reset", Email: "mina@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestVerifyRoundTrip(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	reg, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)

	user, err := svc.Verify(context.Background(), reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	_, err = svc.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyFailsForDeletedUser(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	reg, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeRegister, Name: "Mina", Email: "mina@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, store.DeleteUser(context.Background(), reg.User.ID))

	_, err = svc.Verify(context.Background(), reg.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	require.NoError(t, svc.EnsureAdmin(context.Background()))
	require.NoError(t, svc.EnsureAdmin(context.Background()))

	admin, err := store.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	login, err := svc.Authenticate(context.Background(), services.AuthRequest{
		Mode: services.ModeLogin, Email: "owner@example.com", Password: "operator-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, login.User.Role)
}
