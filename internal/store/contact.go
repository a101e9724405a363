package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/nyxus-portfolio/apiserver/types"
)

// ContactRepository stores messages sent through the contact form.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, msg types.ContactMessage) (types.ContactMessage, error) {
	msg.CreatedAt = time.Now()

	const query = `
		INSERT INTO contact_messages (name, email, subject, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, msg.Name, msg.Email, msg.Subject, msg.Message, msg.CreatedAt).
		Scan(&msg.ID); err != nil {
		return types.ContactMessage{}, err
	}
	return msg, nil
}

// List returns messages newest first.
func (r *ContactRepository) List(ctx context.Context, offset, limit int) ([]types.ContactMessage, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	const countQuery = `SELECT COUNT(1) FROM contact_messages`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, name, email, subject, message, created_at
		FROM contact_messages
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]types.ContactMessage, 0, limit)
	for rows.Next() {
		var msg types.ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
