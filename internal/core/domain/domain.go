package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of a conversation an account or token is on.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

// Sender marks who authored a message. It deliberately mirrors Role.
type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAdmin   Sender = "admin"
)

const KindText = "text"

// Actor is the authenticated caller of a chat operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// CanActOn is the single ownership policy for chat operations:
// admins may act on any conversation, visitors only on their own.
func (a Actor) CanActOn(userID uuid.UUID) bool {
	return a.Role == RoleAdmin || a.UserID == userID
}

// User is the aggregate root: one visitor account and the denormalized
// summaries of their chat conversation and contact-form inbox. The chat
// and email aggregates belong to different features and must never be
// touched by each other's operations.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         Role

	ChatCount       int
	UnreadByAdmin   int
	UnreadByVisitor int
	LastChatMessage string
	LastChatAt      *time.Time

	EmailCount       int
	EmailUnreadCount int
	LastEmailSubject string
	LastEmailMessage string
	LastEmailAt      *time.Time

	CreatedAt time.Time
}

func NewUser(name, email, passwordHash string, role Role) *User {
	return &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
}

// Message is one chat entry. IsRead means "seen by the party that did not
// author it"; every message starts unread.
type Message struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Body      string
	Sender    Sender
	Kind      string
	IsRead    bool
	CreatedAt time.Time
}

func NewMessage(userID uuid.UUID, sender Sender, body string) *Message {
	return &Message{
		ID:        uuid.New(),
		UserID:    userID,
		Body:      body,
		Sender:    sender,
		Kind:      KindText,
		CreatedAt: time.Now(),
	}
}

// ConversationSummary is one roster row for the admin console.
// Online is decorative presence data, not a contract.
type ConversationSummary struct {
	UserID          uuid.UUID  `json:"userId"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	LastChatMessage string     `json:"lastChatMessage"`
	LastChatAt      *time.Time `json:"lastChatDate"`
	UnreadByAdmin   int        `json:"unreadByAdmin"`
	UnreadByVisitor int        `json:"unreadByVisitor"`
	ChatCount       int        `json:"chatCount"`
	Online          bool       `json:"online"`
}

// EmailMessage is one contact-form submission stored against a user.
type EmailMessage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Subject   string
	Body      string
	IsRead    bool
	CreatedAt time.Time
}

// InboxSummary is one contact-inbox roster row for the admin console.
type InboxSummary struct {
	UserID           uuid.UUID  `json:"userId"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	LastEmailSubject string     `json:"lastEmailSubject"`
	LastEmailMessage string     `json:"lastEmailMessage"`
	LastEmailAt      *time.Time `json:"lastEmailDate"`
	EmailUnreadCount int        `json:"emailUnreadCount"`
	EmailCount       int        `json:"emailCount"`
}

// ChatEvent is the best-effort fan-out record published after a message is
// committed. The store stays the source of truth; losing an event only
// delays a poll.
type ChatEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	MessageID uuid.UUID `json:"message_id"`
	Sender    Sender    `json:"sender"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}
