package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const defaultHistoryLimit = 50

// ChatUseCase routes a message and records both sides of the exchange.
// History failures are logged and never fail the reply.
type ChatUseCase struct {
	router  ports.AnswerRouter
	history ports.HistoryStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewChatUseCase(router ports.AnswerRouter, history ports.HistoryStore, logger *slog.Logger) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		router:  router,
		history: history,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, conversationID, message string) (*domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	uc.appendTurn(ctx, conversationID, message, domain.RoleUser)

	decision, err := uc.router.Route(ctx, message)
	if err != nil {
		return nil, err
	}

	uc.appendTurn(ctx, conversationID, decision.Answer, domain.RoleAssistant)

	sources := decision.Provenance
	if sources == nil {
		sources = []string{}
	}
	return &domain.ChatReply{
		ConversationID:  conversationID,
		Response:        decision.Answer,
		Source:          decision.Tier,
		Confidence:      decision.Confidence,
		SourceDocuments: sources,
		Attempts:        decision.Attempts,
	}, nil
}

func (uc *ChatUseCase) History(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat history", errors.New("chat id is required"))
	}
	if uc.history == nil {
		return []domain.ConversationTurn{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	turns, err := uc.history.List(ctx, conversationID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "chat history", err)
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	return turns, nil
}

// DeleteHistory forgets a conversation and reports how many turns were removed.
func (uc *ChatUseCase) DeleteHistory(ctx context.Context, conversationID string) (int, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "delete chat history", errors.New("chat id is required"))
	}
	if uc.history == nil {
		return 0, nil
	}
	n, err := uc.history.Delete(ctx, conversationID)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "delete chat history", err)
	}
	uc.logger.Info("chat_history_deleted", "chat_id", conversationID, "turns", n)
	return n, nil
}

func (uc *ChatUseCase) HistoryStats(ctx context.Context) (domain.HistoryStats, error) {
	if uc.history == nil {
		return domain.HistoryStats{}, nil
	}
	stats, err := uc.history.Stats(ctx)
	if err != nil {
		return domain.HistoryStats{}, domain.WrapError(domain.ErrTemporary, "chat history stats", err)
	}
	return stats, nil
}

func (uc *ChatUseCase) appendTurn(ctx context.Context, conversationID, message string, role domain.Role) {
	if uc.history == nil {
		return
	}
	err := uc.history.Append(ctx, domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Message:        message,
		Role:           role,
		Timestamp:      uc.now(),
	})
	if err != nil {
		uc.logger.Warn("chat_history_append_failed", "chat_id", conversationID, "role", role, "error", err)
	}
}
