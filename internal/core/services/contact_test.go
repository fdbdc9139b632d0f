package services_test

import (
	"context"
	"testing"

	"folio/internal/core/domain"
	"folio/internal/core/services"
	"folio/internal/plugins/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContactFixture(t *testing.T) (*services.ContactService, *memory.Store, *fakeMailer) {
	t.Helper()
	store := memory.NewStore()
	mail := &fakeMailer{}
	svc := services.NewContactService(discardLogger(), store, store.Emails(), mail, memory.Tx{})
	return svc, store, mail
}

func TestSubmitCreatesUserAndRelays(t *testing.T) {
	svc, store, mail := newContactFixture(t)

	email, err := svc.Submit(context.Background(), services.ContactRequest{
		Name:    "Mina",
		Email:   "mina@example.com",
		Subject: "Project inquiry",
		Body:    "I would like a website.",
	})
	require.NoError(t, err)

	user, err := store.GetUserByID(context.Background(), email.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.EmailCount)
	assert.Equal(t, 1, user.EmailUnreadCount)
	assert.Equal(t, "Project inquiry", user.LastEmailSubject)
	assert.Equal(t, 0, user.ChatCount, "contact mail must not touch chat aggregates")

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "relay", mail.sent[0].Kind)
}

func TestSubmitReusesExistingAccount(t *testing.T) {
	svc, store, _ := newContactFixture(t)
	existing := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)
	require.NoError(t, store.CreateUser(context.Background(), existing))

	email, err := svc.Submit(context.Background(), services.ContactRequest{
		Name:  "Mina",
		Email: "MINA@example.com",
		Body:  "second message",
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, email.UserID)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	_, err := svc.Submit(context.Background(), services.ContactRequest{
		Email: "mina@example.com", Body: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	_, err = svc.Submit(context.Background(), services.ContactRequest{
		Name: "Mina", Body: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrEmailRequired)

	_, err = svc.Submit(context.Background(), services.ContactRequest{
		Name: "Mina", Email: "mina@example.com", Body: "  ",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestInboxAndMarkEmailsRead(t *testing.T) {
	svc, store, _ := newContactFixture(t)
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	_, err := svc.Submit(context.Background(), services.ContactRequest{
		Name: "Mina", Email: "mina@example.com", Body: "first",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), services.ContactRequest{
		Name: "Mina", Email: "mina@example.com", Body: "second",
	})
	require.NoError(t, err)

	rows, err := svc.Inbox(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].EmailCount)
	assert.Equal(t, 2, rows[0].EmailUnreadCount)

	flipped, err := svc.MarkEmailsRead(context.Background(), admin, rows[0].UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, flipped)

	user, err := store.GetUserByID(context.Background(), rows[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, user.EmailUnreadCount)
}

func TestInboxIsAdminOnly(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	visitor := domain.Actor{UserID: uuid.New(), Role: domain.RoleVisitor}
	_, err := svc.Inbox(context.Background(), visitor)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.MarkEmailsRead(context.Background(), visitor, uuid.New())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
