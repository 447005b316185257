package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/providers"
)

// ChatHistory implements chatloop.HistoryStore. Each channel's transcript is
// a single JSONB array, appended to with a read-modify-write under the row's
// lock — grounded on the teacher's session-cache JSON-blob convention, keyed
// here by channel id rather than a composite session key since the chat loop
// has no separate session concept (§7).
type ChatHistory struct {
	db *sql.DB
}

func NewChatHistory(db *sql.DB) *ChatHistory {
	return &ChatHistory{db: db}
}

func (h *ChatHistory) History(ctx context.Context, channelID uuid.UUID) ([]providers.Message, error) {
	var raw []byte
	err := h.db.QueryRowContext(ctx,
		`SELECT messages FROM chat_histories WHERE channel_id = $1`, channelID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var messages []providers.Message
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &messages); err != nil {
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

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT messages FROM chat_histories WHERE channel_id = $1 FOR UPDATE`, channelID,
	).Scan(&raw)

	var existing []providers.Message
	switch {
	case err == sql.ErrNoRows:
		// first message for this channel, insert below
	case err != nil:
		return err
	default:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &existing); err != nil {
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
		`INSERT INTO chat_histories (channel_id, messages)
		 VALUES ($1, $2)
		 ON CONFLICT (channel_id) DO UPDATE SET messages = EXCLUDED.messages`,
		channelID, updated,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
