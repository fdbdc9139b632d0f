package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository handles account lifecycle and the denormalized rosters.
type UserRepository interface {
	// CreateUser returns ErrEmailTaken when the email already has an
	// account, so concurrent registrations resolve deterministically.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	// SetPasswordHash installs a credential on an account created
	// without one (contact-form records).
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	// ListConversations returns one row per user with chat activity,
	// most recent conversation first.
	ListConversations(ctx context.Context) ([]ConversationSummary, error)
	// ListInbox returns one row per user with contact-form activity,
	// most recent email first.
	ListInbox(ctx context.Context) ([]InboxSummary, error)
	// SetUnreadByAdmin overrides the admin-side unread counter. Only the
	// mark-unread heuristic uses it; every other path recomputes.
	SetUnreadByAdmin(ctx context.Context, userID uuid.UUID, n int) error
}

// MessageRepository persists chat entries. Every structural mutation also
// refreshes the owning user's chat aggregates (count, both unread counters,
// last-message snapshot) within the caller's transaction, so the counters
// can never drift from the table under concurrent writers.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	// ListByUser returns the full history sorted ascending by created_at.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Message, error)
	// MarkRead flips is_read on every unread message authored by sender
	// and returns how many were flipped.
	MarkRead(ctx context.Context, userID uuid.UUID, sender Sender) (int64, error)
	DeleteOne(ctx context.Context, userID, messageID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

// EmailRepository persists contact-form submissions, refreshing the email
// aggregates the same way MessageRepository refreshes the chat ones.
type EmailRepository interface {
	Append(ctx context.Context, e *EmailMessage) error
	MarkRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
