package file

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/providers"
)

// ChatHistory implements chatloop.HistoryStore against the embedded sqlite
// schema, mirroring store/pg.ChatHistory's single-JSONB-array-per-channel
// shape.
type ChatHistory struct {
	db *sql.DB
}

func NewChatHistory(db *sql.DB) *ChatHistory {
	return &ChatHistory{db: db}
}

func (h *ChatHistory) History(ctx context.Context, channelID uuid.UUID) ([]providers.Message, error) {
	var raw string
	err := h.db.QueryRowContext(ctx,
		`SELECT messages FROM chat_histories WHERE channel_id = ?`, channelID.String(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var messages []providers.Message
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &messages); err != nil {
			return nil, fmt.Errorf("chat history: unmarshal: %w", err)
		}
	}
	return messages, nil
}

func (h *ChatHistory) AppendMessages(ctx context.Context, channelID uuid.UUID, messages []providers.Message) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT messages FROM chat_histories WHERE channel_id = ?`, channelID.String(),
	).Scan(&raw)

	var existing []providers.Message
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return fmt.Errorf("chat history: unmarshal existing: %w", err)
			}
		}
	}

	existing = append(existing, messages...)
	updated, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("chat history: marshal: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_histories (channel_id, messages) VALUES (?, ?)
		 ON CONFLICT (channel_id) DO UPDATE SET messages = excluded.messages`,
		channelID.String(), string(updated),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
