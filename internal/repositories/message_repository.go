package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

// MessageRepository persists the messages of recently opened chats.
type MessageRepository interface {
	ReplaceMessages(ctx context.Context, chatID int, messages []models.Message) error
	DeleteMessage(ctx context.Context, messageID int) error
	ListMessages(ctx context.Context, chatID, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type messageRow struct {
	ID        int    `db:"id"`
	ChatID    int    `db:"chat_id"`
	CreatedAt int64  `db:"created_at"`
	Payload   string `db:"payload"`
}

const upsertMessageSQL = `INSERT INTO messages (id, chat_id, created_at, payload) VALUES (?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET chat_id = excluded.chat_id, created_at = excluded.created_at, payload = excluded.payload`

func upsert(ctx context.Context, tx *sqlx.Tx, messages []models.Message) error {
	query := tx.Rebind(upsertMessageSQL)
	for _, m := range messages {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, m.ID, m.ChatID, m.CreatedAt.UnixNano(), string(payload)); err != nil {
			return fmt.Errorf("upsert message %d: %w", m.ID, err)
		}
	}
	return nil
}

// ReplaceMessages makes messages the full cached history of chatID.
func (r *MessageRepo) ReplaceMessages(ctx context.Context, chatID int, messages []models.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE chat_id = ?`), chatID); err != nil {
		return fmt.Errorf("clear chat %d: %w", chatID, err)
	}
	if err := upsert(ctx, tx, messages); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM messages WHERE id = ?`), messageID)
	return err
}

// ListMessages returns up to limit messages of chatID, newest first.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID, limit int) ([]models.Message, error) {
	var rows []messageRow
	query := r.db.Rebind(`SELECT id, chat_id, created_at, payload FROM messages WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, chatID, limit); err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		var m models.Message
		if err := json.Unmarshal([]byte(row.Payload), &m); err != nil {
			return nil, fmt.Errorf("decode message %d: %w", row.ID, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
