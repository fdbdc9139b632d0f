package postgres

import (
	"context"
	"database/sql"

	"folio/internal/core/domain"

	"github.com/google/uuid"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

/*
	CREATE TABLE messages (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		body       TEXT NOT NULL,
		sender     TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT 'text',
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX messages_user_created_idx ON messages (user_id, created_at);
*/

// refreshChatAggregates recomputes the owning user's chat counters and
// last-message snapshot from the messages table in one statement. Every
// structural mutation calls it inside the same transaction, so the
// counters cannot drift from the table under concurrent writers.
func refreshChatAggregates(ctx context.Context, exec execer, userID uuid.UUID) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE users SET
			chat_count        = agg.total,
			unread_by_admin   = agg.unread_admin,
			unread_by_visitor = agg.unread_visitor,
			last_chat_message = COALESCE(agg.last_body, ''),
			last_chat_at      = agg.last_at
		FROM (
			SELECT
				count(*) AS total,
				count(*) FILTER (WHERE sender = 'visitor' AND NOT is_read) AS unread_admin,
				count(*) FILTER (WHERE sender = 'admin' AND NOT is_read) AS unread_visitor,
				(SELECT body FROM messages
				 WHERE user_id = $1
				 ORDER BY created_at DESC, id DESC LIMIT 1) AS last_body,
				max(created_at) AS last_at
			FROM messages
			WHERE user_id = $1
		) agg
		WHERE users.id = $1
	`, userID)
	return err
}

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	if m.UserID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, body, sender, kind, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.UserID, m.Body, m.Sender, m.Kind, m.IsRead, m.CreatedAt)
	if err != nil {
		return err
	}
	return refreshChatAggregates(ctx, exec, m.UserID)
}

func (r *MessageRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, user_id, body, sender, kind, is_read, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Body, &m.Sender, &m.Kind, &m.IsRead, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) MarkRead(
	ctx context.Context,
	userID uuid.UUID,
	sender domain.Sender,
) (int64, error) {
	if userID == uuid.Nil {
		return 0, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE user_id = $1 AND sender = $2 AND NOT is_read
	`, userID, sender)
	if err != nil {
		return 0, err
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := refreshChatAggregates(ctx, exec, userID); err != nil {
		return 0, err
	}
	return flipped, nil
}

func (r *MessageRepo) DeleteOne(ctx context.Context, userID, messageID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	if messageID == uuid.Nil {
		return domain.ErrInvalidMessageID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM messages WHERE id = $1 AND user_id = $2`, messageID, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return refreshChatAggregates(ctx, exec, userID)
}

func (r *MessageRepo) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := refreshChatAggregates(ctx, exec, userID); err != nil {
		return 0, err
	}
	return removed, nil
}
