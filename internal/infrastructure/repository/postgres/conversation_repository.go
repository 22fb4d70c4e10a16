package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Append(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_history (id, chat_id, message, sender, timestamp)
VALUES ($1,$2,$3,$4,$5)
`, turn.ID, turn.ConversationID, turn.Message, string(turn.Role), turn.Timestamp)
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

// List returns the latest limit turns of a conversation, oldest first.
func (r *ConversationRepository) List(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, chat_id, message, sender, timestamp
FROM chat_history
WHERE chat_id = $1
ORDER BY timestamp DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var (
			turn domain.ConversationTurn
			role string
		)
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Message, &role, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		turn.Role = domain.Role(role)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat turns: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, conversationID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE chat_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete chat turns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chat turns: %w", err)
	}
	return int(n), nil
}

func (r *ConversationRepository) Stats(ctx context.Context) (domain.HistoryStats, error) {
	var stats domain.HistoryStats
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT chat_id)
FROM chat_history
`).Scan(&stats.TotalMessages, &stats.UniqueChats)
	if err != nil {
		return domain.HistoryStats{}, fmt.Errorf("chat history stats: %w", err)
	}
	return stats, nil
}
