package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"folio/internal/core/domain"
	"folio/internal/core/services"
	"folio/internal/plugins/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(t *testing.T) (*services.ChatService, *memory.Store, *fakeBus) {
	t.Helper()
	store := memory.NewStore()
	bus := newFakeBus()
	svc := services.NewChatService(discardLogger(), store, store, &fakePresence{}, bus, memory.Tx{})
	return svc, store, bus
}

func seedVisitor(t *testing.T, store *memory.Store) *domain.User {
	t.Helper()
	u := domain.NewUser("Mina", "mina@example.com", "hash", domain.RoleVisitor)
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestPostMessageRefreshesCounters(t *testing.T) {
	svc, store, bus := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	for i := 0; i < 3; i++ {
		_, err := svc.PostMessage(context.Background(), visitor, u.ID, fmt.Sprintf("hello %d", i))
		require.NoError(t, err)
	}

	got, err := store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ChatCount)
	assert.Equal(t, 3, got.UnreadByAdmin, "visitor messages are unread for the admin")
	assert.Equal(t, 0, got.UnreadByVisitor)
	assert.Equal(t, "hello 2", got.LastChatMessage)
	require.NotNil(t, got.LastChatAt)
	assert.Len(t, bus.published, 3)
}

func TestPostMessageRejectsBlankBody(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	_, err := svc.PostMessage(context.Background(), visitor, u.ID, "   \n\t ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestHistoryIsOrderedByCreationTime(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	// Appends can land out of wall-clock order; history re-sorts.
	later := domain.NewMessage(u.ID, domain.SenderVisitor, "second by clock")
	require.NoError(t, store.Append(context.Background(), later))
	earlier := domain.NewMessage(u.ID, domain.SenderVisitor, "first by clock")
	earlier.CreatedAt = later.CreatedAt.Add(-time.Minute)
	require.NoError(t, store.Append(context.Background(), earlier))

	user, msgs, err := svc.History(context.Background(), visitor, u.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first by clock", msgs[0].Body)
	assert.Equal(t, "second by clock", msgs[1].Body)
	assert.Equal(t, "second by clock", user.LastChatMessage,
		"the snapshot tracks the temporally last message")
	require.NotNil(t, user.LastChatAt)
	assert.True(t, user.LastChatAt.Equal(later.CreatedAt))
}

func TestEventPreviewKeepsRuneBoundaries(t *testing.T) {
	svc, store, bus := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	// 100 two-byte runes: the byte limit lands mid-rune.
	body := strings.Repeat("é", 100)
	_, err := svc.PostMessage(context.Background(), visitor, u.ID, body)
	require.NoError(t, err)

	require.Len(t, bus.published, 1)
	var ev domain.ChatEvent
	require.NoError(t, json.Unmarshal(bus.published[0], &ev))
	assert.True(t, utf8.ValidString(ev.Preview))
	assert.NotEmpty(t, ev.Preview)
	assert.LessOrEqual(t, len(ev.Preview), 120)
}

func TestRosterOnlyListsActiveConversations(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	rows, err := svc.ListConversations(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, rows, "a user with no messages has no roster row")

	_, err = svc.PostMessage(context.Background(), visitor, u.ID, "hi")
	require.NoError(t, err)
	_, err = svc.DeleteAll(context.Background(), visitor, u.ID)
	require.NoError(t, err)

	rows, err = svc.ListConversations(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, rows, "a cleared conversation leaves the roster")
}

func TestVisitorCannotTouchAnotherConversation(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	a := seedVisitor(t, store)
	b := domain.NewUser("Omar", "omar@example.com", "hash", domain.RoleVisitor)
	require.NoError(t, store.CreateUser(context.Background(), b))
	visitorA := domain.Actor{UserID: a.ID, Role: domain.RoleVisitor}

	_, err := svc.PostMessage(context.Background(), visitorA, b.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, _, err = svc.History(context.Background(), visitorA, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.MarkAllRead(context.Background(), visitorA, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdminReplyLandsUnreadForVisitor(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	_, err := svc.PostMessage(context.Background(), admin, u.ID, "welcome")
	require.NoError(t, err)

	got, err := store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadByAdmin)
	assert.Equal(t, 1, got.UnreadByVisitor)
}

func TestMarkAllReadOnlyFlipsOtherParty(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	for i := 0; i < 2; i++ {
		_, err := svc.PostMessage(context.Background(), visitor, u.ID, "from visitor")
		require.NoError(t, err)
	}
	_, err := svc.PostMessage(context.Background(), admin, u.ID, "from admin")
	require.NoError(t, err)

	flipped, err := svc.MarkAllRead(context.Background(), admin, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, flipped)

	got, err := store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadByAdmin)
	assert.Equal(t, 1, got.UnreadByVisitor, "admin ack must not touch the visitor's counter")

	flipped, err = svc.MarkAllRead(context.Background(), visitor, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, flipped)
	got, err = store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadByVisitor)
}

func TestMarkUnreadHeuristic(t *testing.T) {
	cases := []struct {
		name     string
		total    int
		original int
		want     int
	}{
		{name: "quarter of fully read conversation", total: 10, original: 0, want: 3},
		{name: "original capped at conversation length", total: 5, original: 100, want: 5},
		{name: "at least one", total: 2, original: 0, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newChatFixture(t)
			u := seedVisitor(t, store)
			visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
			admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
			for i := 0; i < tc.total; i++ {
				_, err := svc.PostMessage(context.Background(), visitor, u.ID, "msg")
				require.NoError(t, err)
			}
			_, err := svc.MarkAllRead(context.Background(), admin, u.ID)
			require.NoError(t, err)

			target, err := svc.MarkUnread(context.Background(), admin, u.ID, tc.original)
			require.NoError(t, err)
			assert.Equal(t, tc.want, target)

			got, err := store.GetUserByID(context.Background(), u.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.UnreadByAdmin)
		})
	}
}

func TestMarkUnreadDoublesPartialCount(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
	for i := 0; i < 10; i++ {
		_, err := svc.PostMessage(context.Background(), visitor, u.ID, "msg")
		require.NoError(t, err)
	}
	_, err := svc.MarkAllRead(context.Background(), admin, u.ID)
	require.NoError(t, err)
	require.NoError(t, store.SetUnreadByAdmin(context.Background(), u.ID, 2))

	target, err := svc.MarkUnread(context.Background(), admin, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, target)
}

func TestMarkUnreadRequiresAdmin(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	_, err := svc.MarkUnread(context.Background(), visitor, u.ID, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteLastMessageClearsSummary(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	msg, err := svc.PostMessage(context.Background(), visitor, u.ID, "only one")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMessage(context.Background(), visitor, u.ID, msg.ID))

	got, err := store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ChatCount)
	assert.Equal(t, 0, got.UnreadByAdmin)
	assert.Equal(t, 0, got.UnreadByVisitor)
	assert.Empty(t, got.LastChatMessage)
	assert.Nil(t, got.LastChatAt)
}

func TestDeleteMissingMessage(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	err := svc.DeleteMessage(context.Background(), visitor, u.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestDeleteAllResetsConversation(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	for i := 0; i < 4; i++ {
		_, err := svc.PostMessage(context.Background(), visitor, u.ID, "msg")
		require.NoError(t, err)
	}

	removed, err := svc.DeleteAll(context.Background(), visitor, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, removed)

	got, err := store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ChatCount)
}

func TestListConversationsIsAdminOnly(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	u := seedVisitor(t, store)
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}

	_, err := svc.ListConversations(context.Background(), visitor)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestListConversationsMarksOnlineVisitors(t *testing.T) {
	store := memory.NewStore()
	u := seedVisitor(t, store)
	presence := &fakePresence{online: []string{u.ID.String()}}
	svc := services.NewChatService(discardLogger(), store, store, presence, newFakeBus(), memory.Tx{})
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	_, err := svc.PostMessage(context.Background(), visitor, u.ID, "hi")
	require.NoError(t, err)

	rows, err := svc.ListConversations(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Online)
}

func TestHistoryTouchesPresenceForVisitors(t *testing.T) {
	store := memory.NewStore()
	u := seedVisitor(t, store)
	presence := &fakePresence{}
	svc := services.NewChatService(discardLogger(), store, store, presence, newFakeBus(), memory.Tx{})
	visitor := domain.Actor{UserID: u.ID, Role: domain.RoleVisitor}
	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	_, _, err := svc.History(context.Background(), visitor, u.ID)
	require.NoError(t, err)
	_, _, err = svc.History(context.Background(), admin, u.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{u.ID.String()}, presence.touched, "only visitor polls count as presence")
}
