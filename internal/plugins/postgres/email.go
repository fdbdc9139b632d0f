package postgres

import (
	"context"
	"database/sql"

	"folio/internal/core/domain"

	"github.com/google/uuid"
)

type EmailRepo struct {
	db *sql.DB
}

func NewEmailRepo(db *sql.DB) *EmailRepo {
	return &EmailRepo{db: db}
}

/*
	CREATE TABLE emails (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		subject    TEXT NOT NULL,
		body       TEXT NOT NULL,
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX emails_user_created_idx ON emails (user_id, created_at);
*/

func refreshEmailAggregates(ctx context.Context, exec execer, userID uuid.UUID) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE users SET
			email_count        = agg.total,
			email_unread_count = agg.unread,
			last_email_subject = COALESCE(agg.last_subject, ''),
			last_email_message = COALESCE(agg.last_body, ''),
			last_email_at      = agg.last_at
		FROM (
			SELECT
				count(*) AS total,
				count(*) FILTER (WHERE NOT is_read) AS unread,
				(SELECT subject FROM emails
				 WHERE user_id = $1
				 ORDER BY created_at DESC, id DESC LIMIT 1) AS last_subject,
				(SELECT body FROM emails
				 WHERE user_id = $1
				 ORDER BY created_at DESC, id DESC LIMIT 1) AS last_body,
				max(created_at) AS last_at
			FROM emails
			WHERE user_id = $1
		) agg
		WHERE users.id = $1
	`, userID)
	return err
}

func (r *EmailRepo) Append(ctx context.Context, e *domain.EmailMessage) error {
	if e.UserID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO emails (id, user_id, subject, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.UserID, e.Subject, e.Body, e.IsRead, e.CreatedAt)
	if err != nil {
		return err
	}
	return refreshEmailAggregates(ctx, exec, e.UserID)
}

func (r *EmailRepo) MarkRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE emails SET is_read = TRUE
		WHERE user_id = $1 AND NOT is_read
	`, userID)
	if err != nil {
		return 0, err
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := refreshEmailAggregates(ctx, exec, userID); err != nil {
		return 0, err
	}
	return flipped, nil
}
