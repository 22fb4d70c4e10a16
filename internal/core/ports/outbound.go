package ports

import (
	"context"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the external generative capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// WebSearcher returns found=false when no provider produced content.
type WebSearcher interface {
	Search(ctx context.Context, query string) (hit domain.SearchHit, found bool, err error)
}

// TextExtractor converts an uploaded blob into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, raw []byte) (string, error)
}

// Chunker splits text into overlapping word windows.
type Chunker interface {
	Split(text string) []domain.Chunk
}

// KnowledgeIndex is implemented by the embedding and lexical index variants.
// AddDocument must make all entries of one document visible at once.
type KnowledgeIndex interface {
	Method() domain.ProcessingMethod
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	AddDocument(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
}

// Snapshotter is implemented by indexes whose content can be persisted and restored.
type Snapshotter interface {
	Entries() []domain.IndexEntry
	Restore(entries []domain.IndexEntry) error
}

// EntryStore persists the flat list of index entries.
type EntryStore interface {
	Load(ctx context.Context) ([]domain.IndexEntry, error)
	Save(ctx context.Context, entries []domain.IndexEntry) error
}

// HistoryStore persists conversation turns.
type HistoryStore interface {
	Append(ctx context.Context, turn domain.ConversationTurn) error
	List(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
	// Delete removes every turn of a conversation and reports how many were removed.
	Delete(ctx context.Context, conversationID string) (int, error)
	Stats(ctx context.Context) (domain.HistoryStats, error)
}
