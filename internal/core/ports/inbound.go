package ports

import (
	"context"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// KnowledgeIngestor is the inbound contract for document ingestion.
type KnowledgeIngestor interface {
	Ingest(ctx context.Context, docs []domain.SourceDocument) (*domain.IngestResult, error)
}

// KnowledgeQueryService answers a query from the knowledge base only.
type KnowledgeQueryService interface {
	Query(ctx context.Context, text string) (*domain.KnowledgeAnswer, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// AnswerRouter runs the full knowledge base -> web search -> generative fallback chain.
type AnswerRouter interface {
	Route(ctx context.Context, query string) (*domain.FallbackDecision, error)
}

// ChatService routes a message and records the exchange in conversation history.
type ChatService interface {
	Chat(ctx context.Context, conversationID, message string) (*domain.ChatReply, error)
	History(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
	DeleteHistory(ctx context.Context, conversationID string) (int, error)
	HistoryStats(ctx context.Context) (domain.HistoryStats, error)
}
