package postgres

import (
	"context"
	"database/sql"
	"errors"

	"folio/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

/*
	CREATE TABLE users (
		id                 UUID PRIMARY KEY,
		name               TEXT NOT NULL,
		email              TEXT NOT NULL UNIQUE,
		password_hash      TEXT NOT NULL DEFAULT '',
		role               TEXT NOT NULL DEFAULT 'visitor',
		chat_count         INT NOT NULL DEFAULT 0,
		unread_by_admin    INT NOT NULL DEFAULT 0,
		unread_by_visitor  INT NOT NULL DEFAULT 0,
		last_chat_message  TEXT NOT NULL DEFAULT '',
		last_chat_at       TIMESTAMPTZ,
		email_count        INT NOT NULL DEFAULT 0,
		email_unread_count INT NOT NULL DEFAULT 0,
		last_email_subject TEXT NOT NULL DEFAULT '',
		last_email_message TEXT NOT NULL DEFAULT '',
		last_email_at      TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

const userColumns = `id, name, email, password_hash, role,
	chat_count, unread_by_admin, unread_by_visitor, last_chat_message, last_chat_at,
	email_count, email_unread_count, last_email_subject, last_email_message, last_email_at,
	created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.ChatCount, &u.UnreadByAdmin, &u.UnreadByVisitor, &u.LastChatMessage, &u.LastChatAt,
		&u.EmailCount, &u.EmailUnreadCount, &u.LastEmailSubject, &u.LastEmailMessage, &u.LastEmailAt,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Unique violation on the email index: a concurrent
		// registration won the insert.
		return domain.ErrEmailTaken
	}
	return err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	return scanUser(exec.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	return scanUser(exec.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	// Messages and emails go with the user via ON DELETE CASCADE.
	result, err := exec.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, name, email, last_chat_message, last_chat_at,
		       unread_by_admin, unread_by_visitor, chat_count
		FROM users
		WHERE chat_count > 0 AND last_chat_message <> ''
		ORDER BY last_chat_at DESC NULLS LAST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ConversationSummary
	for rows.Next() {
		var c domain.ConversationSummary
		if err := rows.Scan(
			&c.UserID, &c.Name, &c.Email, &c.LastChatMessage, &c.LastChatAt,
			&c.UnreadByAdmin, &c.UnreadByVisitor, &c.ChatCount,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *UserRepo) ListInbox(ctx context.Context) ([]domain.InboxSummary, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, name, email, last_email_subject, last_email_message, last_email_at,
		       email_unread_count, email_count
		FROM users
		WHERE email_count > 0
		ORDER BY last_email_at DESC NULLS LAST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.InboxSummary
	for rows.Next() {
		var s domain.InboxSummary
		if err := rows.Scan(
			&s.UserID, &s.Name, &s.Email, &s.LastEmailSubject, &s.LastEmailMessage, &s.LastEmailAt,
			&s.EmailUnreadCount, &s.EmailCount,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *UserRepo) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	if userID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) SetUnreadByAdmin(ctx context.Context, userID uuid.UUID, n int) error {
	if userID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`UPDATE users SET unread_by_admin = $2 WHERE id = $1`, userID, n)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
