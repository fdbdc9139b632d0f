package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"folio/internal/core/contracts"
	"folio/internal/core/domain"
	"folio/pkg/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("folio-services")

// TxRunner scopes a function to one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// presenceTTL is how long a polling visitor counts as online. Decorative.
const presenceTTL = 45 * time.Second

// previewLimit caps the message preview carried in fan-out events.
const previewLimit = 120

type IChatService interface {
	// PostMessage appends one message to the target user's conversation
	// and refreshes the denormalized summary in the same transaction.
	PostMessage(ctx context.Context, actor domain.Actor, targetUserID uuid.UUID, body string) (*domain.Message, error)
	// ListConversations returns the admin roster, most recent first.
	ListConversations(ctx context.Context, actor domain.Actor) ([]domain.ConversationSummary, error)
	// History returns the full ordered message list plus the summary row.
	History(ctx context.Context, actor domain.Actor, userID uuid.UUID) (*domain.User, []domain.Message, error)
	// MarkAllRead flips every message authored by the other party.
	MarkAllRead(ctx context.Context, actor domain.Actor, userID uuid.UUID) (int64, error)
	// MarkUnread restores an approximate unread count (admin undo-read).
	MarkUnread(ctx context.Context, actor domain.Actor, userID uuid.UUID, originalUnread int) (int, error)
	DeleteMessage(ctx context.Context, actor domain.Actor, userID, messageID uuid.UUID) error
	DeleteAll(ctx context.Context, actor domain.Actor, userID uuid.UUID) (int64, error)
	DeleteUser(ctx context.Context, actor domain.Actor, userID uuid.UUID) error
}

type ChatService struct {
	log      *slog.Logger
	users    domain.UserRepository
	messages domain.MessageRepository
	presence contracts.PresenceStore
	events   contracts.EventBus
	tx       TxRunner
}

func NewChatService(
	log *slog.Logger,
	users domain.UserRepository,
	messages domain.MessageRepository,
	presence contracts.PresenceStore,
	events contracts.EventBus,
	tx TxRunner,
) *ChatService {
	return &ChatService{
		log:      log,
		users:    users,
		messages: messages,
		presence: presence,
		events:   events,
		tx:       tx,
	}
}

func (s *ChatService) PostMessage(
	ctx context.Context,
	actor domain.Actor,
	targetUserID uuid.UUID,
	body string,
) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatService.PostMessage", trace.WithAttributes(
		attribute.String("user_id", targetUserID.String()),
		attribute.String("sender", string(actor.Role)),
	))
	defer span.End()
	if !actor.CanActOn(targetUserID) {
		span.RecordError(domain.ErrForbidden)
		return nil, domain.ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		span.RecordError(domain.ErrEmptyMessage)
		return nil, domain.ErrEmptyMessage
	}
	msg := domain.NewMessage(targetUserID, domain.Sender(actor.Role), body)
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetUserByID(txCtx, targetUserID); err != nil {
			return err
		}
		return s.messages.Append(txCtx, msg)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.log.ErrorContext(ctx, "chat - post message - append failed",
			logging.User(targetUserID.String()), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "chat - post message - append success",
		logging.User(targetUserID.String()), logging.Message(msg.ID.String()), logging.Sender(string(msg.Sender)))
	s.publishEvent(ctx, msg)
	span.SetStatus(codes.Ok, "posted")
	return msg, nil
}

// publishEvent pushes the committed message onto the event stream. Losing
// an event only delays the next poll, so failures log and nothing more.
func (s *ChatService) publishEvent(ctx context.Context, msg *domain.Message) {
	preview := msg.Body
	if len(preview) > previewLimit {
		cut := previewLimit
		// Back up to a rune boundary so the trim never splits UTF-8.
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	ev := domain.ChatEvent{
		UserID:    msg.UserID,
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Preview:   preview,
		CreatedAt: msg.CreatedAt,
	}
	raw, _ := json.Marshal(ev)
	if err := s.events.Publish(ctx, raw); err != nil {
		s.log.ErrorContext(ctx, "chat - post message - publish event failed",
			logging.User(msg.UserID.String()), logging.Err(err))
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actor domain.Actor,
) ([]domain.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "ChatService.ListConversations")
	defer span.End()
	if actor.Role != domain.RoleAdmin {
		span.RecordError(domain.ErrForbidden)
		return nil, domain.ErrForbidden
	}
	rows, err := s.users.ListConversations(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster read failed")
		s.log.ErrorContext(ctx, "chat - list conversations - roster read failed", logging.Err(err))
		return nil, err
	}
	// Presence decoration is best-effort, the roster works without it.
	if online, err := s.presence.Online(ctx); err == nil {
		active := make(map[string]struct{}, len(online))
		for _, id := range online {
			active[id] = struct{}{}
		}
		for i := range rows {
			_, rows[i].Online = active[rows[i].UserID.String()]
		}
	} else {
		s.log.ErrorContext(ctx, "chat - list conversations - presence read failed", logging.Err(err))
	}
	span.SetAttributes(attribute.Int("conversation_count", len(rows)))
	return rows, nil
}

func (s *ChatService) History(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
) (*domain.User, []domain.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatService.History", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()
	if !actor.CanActOn(userID) {
		span.RecordError(domain.ErrForbidden)
		return nil, nil, domain.ErrForbidden
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	msgs, err := s.messages.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history read failed")
		s.log.ErrorContext(ctx, "chat - history - read failed",
			logging.User(userID.String()), logging.Err(err))
		return nil, nil, err
	}
	if actor.Role == domain.RoleVisitor {
		if err := s.presence.Touch(ctx, userID.String(), presenceTTL); err != nil {
			s.log.ErrorContext(ctx, "chat - history - presence touch failed",
				logging.User(userID.String()), logging.Err(err))
		}
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return user, msgs, nil
}

func (s *ChatService) MarkAllRead(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
) (int64, error) {
	ctx, span := tracer.Start(ctx, "ChatService.MarkAllRead", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("viewer", string(actor.Role)),
	))
	defer span.End()
	if !actor.CanActOn(userID) {
		span.RecordError(domain.ErrForbidden)
		return 0, domain.ErrForbidden
	}
	// The viewer acknowledges what the other party wrote.
	other := domain.SenderVisitor
	if actor.Role == domain.RoleVisitor {
		other = domain.SenderAdmin
	}
	var flipped int64
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetUserByID(txCtx, userID); err != nil {
			return err
		}
		var err error
		flipped, err = s.messages.MarkRead(txCtx, userID, other)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark read failed")
		s.log.ErrorContext(ctx, "chat - mark all read - failed",
			logging.User(userID.String()), logging.Err(err))
		return 0, err
	}
	s.log.InfoContext(ctx, "chat - mark all read - success",
		logging.User(userID.String()), slog.Int64("flipped", flipped))
	return flipped, nil
}

func (s *ChatService) MarkUnread(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
	originalUnread int,
) (int, error) {
	ctx, span := tracer.Start(ctx, "ChatService.MarkUnread", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()
	if actor.Role != domain.RoleAdmin {
		span.RecordError(domain.ErrForbidden)
		return 0, domain.ErrForbidden
	}
	var target int
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByID(txCtx, userID)
		if err != nil {
			return err
		}
		target = unreadRestoreTarget(user.UnreadByAdmin, user.ChatCount, originalUnread)
		return s.users.SetUnreadByAdmin(txCtx, userID, target)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark unread failed")
		s.log.ErrorContext(ctx, "chat - mark unread - failed",
			logging.User(userID.String()), logging.Err(err))
		return 0, err
	}
	s.log.InfoContext(ctx, "chat - mark unread - success",
		logging.User(userID.String()), slog.Int("unread", target))
	return target, nil
}

// unreadRestoreTarget computes the approximate unread count the undo-read
// affordance restores. It never exceeds the conversation length:
// a supplied positive original wins, a fully-read conversation restores a
// quarter (at least one), a partially-unread one doubles.
func unreadRestoreTarget(current, total, original int) int {
	if total <= 0 {
		return 0
	}
	if original > 0 {
		return min(original, total)
	}
	if current == 0 {
		return max(1, (total+3)/4)
	}
	return min(current*2, total)
}

func (s *ChatService) DeleteMessage(
	ctx context.Context,
	actor domain.Actor,
	userID, messageID uuid.UUID,
) error {
	ctx, span := tracer.Start(ctx, "ChatService.DeleteMessage", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("message_id", messageID.String()),
	))
	defer span.End()
	if !actor.CanActOn(userID) {
		span.RecordError(domain.ErrForbidden)
		return domain.ErrForbidden
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetUserByID(txCtx, userID); err != nil {
			return err
		}
		return s.messages.DeleteOne(txCtx, userID, messageID)
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - delete message - failed",
			logging.User(userID.String()), logging.Message(messageID.String()), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "chat - delete message - success",
		logging.User(userID.String()), logging.Message(messageID.String()))
	return nil
}

func (s *ChatService) DeleteAll(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
) (int64, error) {
	ctx, span := tracer.Start(ctx, "ChatService.DeleteAll", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()
	if !actor.CanActOn(userID) {
		span.RecordError(domain.ErrForbidden)
		return 0, domain.ErrForbidden
	}
	var removed int64
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetUserByID(txCtx, userID); err != nil {
			return err
		}
		var err error
		removed, err = s.messages.DeleteAll(txCtx, userID)
		return err
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - delete all - failed",
			logging.User(userID.String()), logging.Err(err))
		return 0, err
	}
	s.log.InfoContext(ctx, "chat - delete all - success",
		logging.User(userID.String()), slog.Int64("removed", removed))
	return removed, nil
}

func (s *ChatService) DeleteUser(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
) error {
	ctx, span := tracer.Start(ctx, "ChatService.DeleteUser", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()
	if actor.Role != domain.RoleAdmin {
		span.RecordError(domain.ErrForbidden)
		return domain.ErrForbidden
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.users.DeleteUser(txCtx, userID)
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - delete user - failed",
			logging.User(userID.String()), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "chat - delete user - success", logging.User(userID.String()))
	return nil
}
