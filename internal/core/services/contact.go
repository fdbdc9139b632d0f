package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"folio/internal/core/contracts"
	"folio/internal/core/domain"
	"folio/pkg/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ContactRequest struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

type IContactService interface {
	// Submit stores a contact-form message against its sender's account,
	// creating the account on first contact, and relays it to the operator.
	Submit(ctx context.Context, req ContactRequest) (*domain.EmailMessage, error)
	// Inbox returns the admin contact roster, most recent email first.
	Inbox(ctx context.Context, actor domain.Actor) ([]domain.InboxSummary, error)
	// MarkEmailsRead flips every unread email for one user.
	MarkEmailsRead(ctx context.Context, actor domain.Actor, userID uuid.UUID) (int64, error)
}

type ContactService struct {
	log    *slog.Logger
	users  domain.UserRepository
	emails domain.EmailRepository
	mailer contracts.Mailer
	tx     TxRunner
}

func NewContactService(
	log *slog.Logger,
	users domain.UserRepository,
	emails domain.EmailRepository,
	mailer contracts.Mailer,
	tx TxRunner,
) *ContactService {
	return &ContactService{
		log:    log,
		users:  users,
		emails: emails,
		mailer: mailer,
		tx:     tx,
	}
}

func (s *ContactService) Submit(ctx context.Context, req ContactRequest) (*domain.EmailMessage, error) {
	ctx, span := tracer.Start(ctx, "ContactService.Submit")
	defer span.End()
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	if req.Name == "" {
		return nil, domain.ErrNameRequired
	}
	if req.Email == "" {
		return nil, domain.ErrEmailRequired
	}
	if req.Body == "" {
		return nil, domain.ErrEmptyMessage
	}
	if req.Subject == "" {
		req.Subject = "Contact form message"
	}
	email := &domain.EmailMessage{
		ID:        uuid.New(),
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByEmail(txCtx, req.Email)
		if errors.Is(err, domain.ErrUserNotFound) {
			// First contact, no password yet. The visitor gets one if
			// they ever register for chat.
			user = domain.NewUser(req.Name, req.Email, "", domain.RoleVisitor)
			err = s.users.CreateUser(txCtx, user)
		}
		if err != nil {
			return err
		}
		email.UserID = user.ID
		return s.emails.Append(txCtx, email)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		s.log.ErrorContext(ctx, "contact - submit - store failed",
			logging.Email(req.Email), logging.Err(err))
		return nil, err
	}
	// Relay is best-effort: the submission is already durable.
	if err := s.mailer.SendContactRelay(ctx, req.Name, req.Email, req.Subject, req.Body); err != nil {
		s.log.ErrorContext(ctx, "contact - submit - relay mail failed",
			logging.Email(req.Email), logging.Err(err))
	}
	s.log.InfoContext(ctx, "contact - submit - stored",
		logging.User(email.UserID.String()), logging.Email(req.Email))
	return email, nil
}

func (s *ContactService) Inbox(ctx context.Context, actor domain.Actor) ([]domain.InboxSummary, error) {
	ctx, span := tracer.Start(ctx, "ContactService.Inbox")
	defer span.End()
	if actor.Role != domain.RoleAdmin {
		span.RecordError(domain.ErrForbidden)
		return nil, domain.ErrForbidden
	}
	rows, err := s.users.ListInbox(ctx)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "contact - inbox - read failed", logging.Err(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("inbox_count", len(rows)))
	return rows, nil
}

func (s *ContactService) MarkEmailsRead(
	ctx context.Context,
	actor domain.Actor,
	userID uuid.UUID,
) (int64, error) {
	ctx, span := tracer.Start(ctx, "ContactService.MarkEmailsRead", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()
	if actor.Role != domain.RoleAdmin {
		span.RecordError(domain.ErrForbidden)
		return 0, domain.ErrForbidden
	}
	var flipped int64
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetUserByID(txCtx, userID); err != nil {
			return err
		}
		var err error
		flipped, err = s.emails.MarkRead(txCtx, userID)
		return err
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "contact - mark emails read - failed",
			logging.User(userID.String()), logging.Err(err))
		return 0, err
	}
	s.log.InfoContext(ctx, "contact - mark emails read - success",
		logging.User(userID.String()), slog.Int64("flipped", flipped))
	return flipped, nil
}
