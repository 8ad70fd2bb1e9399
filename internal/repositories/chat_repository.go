package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

// ChatRepository persists the last known chat list.
type ChatRepository interface {
	ReplaceChats(ctx context.Context, chats []models.Chat) error
	ListChats(ctx context.Context) ([]models.Chat, error)
	DeleteChat(ctx context.Context, chatID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type chatRow struct {
	ID       int    `db:"id"`
	Position int    `db:"position"`
	Payload  string `db:"payload"`
}

// ReplaceChats stores chats in list order, dropping anything not in the list.
func (r *ChatRepo) ReplaceChats(ctx context.Context, chats []models.Chat) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}
	insert := tx.Rebind(`INSERT INTO chats (id, position, payload) VALUES (?, ?, ?)`)
	for i, chat := range chats {
		payload, err := json.Marshal(chat)
		if err != nil {
			return fmt.Errorf("encode chat %d: %w", chat.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, chat.ID, i, string(payload)); err != nil {
			return fmt.Errorf("insert chat %d: %w", chat.ID, err)
		}
	}
	return tx.Commit()
}

// ListChats returns the cached chats in stored order.
func (r *ChatRepo) ListChats(ctx context.Context) ([]models.Chat, error) {
	var rows []chatRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, position, payload FROM chats ORDER BY position ASC`); err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		var chat models.Chat
		if err := json.Unmarshal([]byte(row.Payload), &chat); err != nil {
			return nil, fmt.Errorf("decode chat %d: %w", row.ID, err)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// DeleteChat removes a chat and its cached messages.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE chat_id = ?`), chatID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chats WHERE id = ?`), chatID); err != nil {
		return err
	}
	return tx.Commit()
}
