// Package memory holds a map-backed implementation of the repositories
// with the same aggregate-refresh semantics as the postgres plugin. It
// backs the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"folio/internal/core/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	messages map[uuid.UUID][]domain.Message
	emails   map[uuid.UUID][]domain.EmailMessage
}

func NewStore() *Store {
	return &Store{
		users:    map[uuid.UUID]*domain.User{},
		messages: map[uuid.UUID][]domain.Message{},
		emails:   map[uuid.UUID][]domain.EmailMessage{},
	}
}

// Tx satisfies the transaction runner without transactional semantics;
// the store is already serialized by its mutex.
type Tx struct{}

func (Tx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// messageBefore is the history order: created_at ascending, id as the
// tiebreak, matching the postgres plugin's ORDER BY.
func messageBefore(a, b *domain.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// refreshChat mirrors the recomputing UPDATE the postgres plugin runs
// after every structural mutation. The snapshot row is the temporally
// last message, not the last appended one; backfilled timestamps may
// land out of insertion order.
func (s *Store) refreshChat(userID uuid.UUID) {
	u, ok := s.users[userID]
	if !ok {
		return
	}
	msgs := s.messages[userID]
	u.ChatCount = len(msgs)
	u.UnreadByAdmin = 0
	u.UnreadByVisitor = 0
	u.LastChatMessage = ""
	u.LastChatAt = nil
	var last *domain.Message
	for i := range msgs {
		m := &msgs[i]
		if !m.IsRead {
			if m.Sender == domain.SenderVisitor {
				u.UnreadByAdmin++
			} else {
				u.UnreadByVisitor++
			}
		}
		if last == nil || messageBefore(last, m) {
			last = m
		}
	}
	if last != nil {
		u.LastChatMessage = last.Body
		at := last.CreatedAt
		u.LastChatAt = &at
	}
}

func (s *Store) refreshEmail(userID uuid.UUID) {
	u, ok := s.users[userID]
	if !ok {
		return
	}
	emails := s.emails[userID]
	u.EmailCount = len(emails)
	u.EmailUnreadCount = 0
	u.LastEmailSubject = ""
	u.LastEmailMessage = ""
	u.LastEmailAt = nil
	for i := range emails {
		if !emails[i].IsRead {
			u.EmailUnreadCount++
		}
	}
	if len(emails) > 0 {
		last := emails[len(emails)-1]
		u.LastEmailSubject = last.Subject
		u.LastEmailMessage = last.Body
		at := last.CreatedAt
		u.LastEmailAt = &at
	}
}

// UserRepository

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailTaken
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.messages, id)
	delete(s.emails, id)
	return nil
}

func (s *Store) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConversationSummary
	for _, u := range s.users {
		if u.ChatCount == 0 || u.LastChatMessage == "" {
			continue
		}
		out = append(out, domain.ConversationSummary{
			UserID:          u.ID,
			Name:            u.Name,
			Email:           u.Email,
			LastChatMessage: u.LastChatMessage,
			LastChatAt:      u.LastChatAt,
			UnreadByAdmin:   u.UnreadByAdmin,
			UnreadByVisitor: u.UnreadByVisitor,
			ChatCount:       u.ChatCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastChatAt, out[j].LastChatAt
		if a == nil || b == nil {
			return b == nil
		}
		return a.After(*b)
	})
	return out, nil
}

func (s *Store) ListInbox(ctx context.Context) ([]domain.InboxSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InboxSummary
	for _, u := range s.users {
		if u.EmailCount == 0 {
			continue
		}
		out = append(out, domain.InboxSummary{
			UserID:           u.ID,
			Name:             u.Name,
			Email:            u.Email,
			LastEmailSubject: u.LastEmailSubject,
			LastEmailMessage: u.LastEmailMessage,
			LastEmailAt:      u.LastEmailAt,
			EmailUnreadCount: u.EmailUnreadCount,
			EmailCount:       u.EmailCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastEmailAt, out[j].LastEmailAt
		if a == nil || b == nil {
			return b == nil
		}
		return a.After(*b)
	})
	return out, nil
}

func (s *Store) SetUnreadByAdmin(ctx context.Context, userID uuid.UUID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.UnreadByAdmin = n
	return nil
}

func (s *Store) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

// MessageRepository

func (s *Store) Append(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[m.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	s.messages[m.UserID] = append(s.messages[m.UserID], *m)
	s.refreshChat(m.UserID)
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[userID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return messageBefore(&out[i], &out[j])
	})
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, userID uuid.UUID, sender domain.Sender) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[userID]
	var flipped int64
	for i := range msgs {
		if msgs[i].Sender == sender && !msgs[i].IsRead {
			msgs[i].IsRead = true
			flipped++
		}
	}
	s.refreshChat(userID)
	return flipped, nil
}

func (s *Store) DeleteOne(ctx context.Context, userID, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[userID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			s.messages[userID] = append(msgs[:i], msgs[i+1:]...)
			s.refreshChat(userID)
			return nil
		}
	}
	return domain.ErrMessageNotFound
}

func (s *Store) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := int64(len(s.messages[userID]))
	delete(s.messages, userID)
	s.refreshChat(userID)
	return removed, nil
}

// EmailRepository. AppendEmail/MarkEmailsRead have distinct names so one
// Store can satisfy all three repository interfaces at once.

type EmailRepo struct {
	*Store
}

func (s *Store) Emails() *EmailRepo {
	return &EmailRepo{Store: s}
}

func (r *EmailRepo) Append(ctx context.Context, e *domain.EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[e.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	r.emails[e.UserID] = append(r.emails[e.UserID], *e)
	r.refreshEmail(e.UserID)
	return nil
}

func (r *EmailRepo) MarkRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	emails := r.emails[userID]
	var flipped int64
	for i := range emails {
		if !emails[i].IsRead {
			emails[i].IsRead = true
			flipped++
		}
	}
	r.refreshEmail(userID)
	return flipped, nil
}
