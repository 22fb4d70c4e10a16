package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// HistoryStore keeps conversation turns in process memory.
type HistoryStore struct {
	mu    sync.RWMutex
	turns map[string][]domain.ConversationTurn
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{turns: make(map[string][]domain.ConversationTurn)}
}

func (s *HistoryStore) Append(_ context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], turn)
	return nil
}

func (s *HistoryStore) List(_ context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *HistoryStore) Delete(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.turns[conversationID])
	delete(s.turns, conversationID)
	return n, nil
}

func (s *HistoryStore) Stats(context.Context) (domain.HistoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.HistoryStats{UniqueChats: len(s.turns)}
	for _, turns := range s.turns {
		stats.TotalMessages += len(turns)
	}
	return stats, nil
}
