package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/dedup"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// IngestObserver is notified of every completed ingestion batch.
type IngestObserver interface {
	ObserveIngest(result *domain.IngestResult)
}

// IngestUseCase is the single writer of the knowledge index.
type IngestUseCase struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	index     ports.KnowledgeIndex
	snapshot  ports.Snapshotter
	store     ports.EntryStore
	observer  IngestObserver
	logger    *slog.Logger
	now       func() time.Time

	writeMu sync.Mutex
}

func NewIngestUseCase(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	index ports.KnowledgeIndex,
	logger *slog.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		extractor: extractor,
		chunker:   chunker,
		index:     index,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithPersistence saves the index snapshot to store after every batch that added entries.
func (uc *IngestUseCase) WithPersistence(snapshot ports.Snapshotter, store ports.EntryStore) *IngestUseCase {
	uc.snapshot = snapshot
	uc.store = store
	return uc
}

func (uc *IngestUseCase) WithObserver(observer IngestObserver) *IngestUseCase {
	uc.observer = observer
	return uc
}

func (uc *IngestUseCase) Ingest(ctx context.Context, docs []domain.SourceDocument) (*domain.IngestResult, error) {
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no documents provided"))
	}

	result := &domain.IngestResult{
		FilesProcessed: []string{},
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	batch := make(map[string]struct{}, len(docs))
	for _, src := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		added, duplicate, err := uc.ingestOne(ctx, src, batch)
		if err != nil {
			uc.logger.Warn("ingest_document_rejected", "filename", src.Filename, "error", err)
			result.FilesRejected = append(result.FilesRejected, domain.RejectedFile{
				Filename: src.Filename,
				Reason:   err.Error(),
			})
			continue
		}
		result.FilesProcessed = append(result.FilesProcessed, src.Filename)
		if duplicate {
			uc.logger.Info("ingest_document_skipped", "filename", src.Filename, "reason", "duplicate")
			result.DuplicatesSkipped++
			continue
		}
		result.DocumentsAdded += added
	}

	if result.DocumentsAdded > 0 {
		uc.persist(ctx)
	}
	uc.logger.Info("ingest_batch_completed",
		"documents_added", result.DocumentsAdded,
		"duplicates_skipped", result.DuplicatesSkipped,
		"files_processed", len(result.FilesProcessed),
		"files_rejected", len(result.FilesRejected),
	)
	if uc.observer != nil {
		uc.observer.ObserveIngest(result)
	}
	return result, nil
}

func (uc *IngestUseCase) ingestOne(ctx context.Context, src domain.SourceDocument, batch map[string]struct{}) (int, bool, error) {
	filename := strings.TrimSpace(src.Filename)
	if filename == "" {
		return 0, false, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("filename is required"))
	}

	text, err := uc.extractor.Extract(ctx, filename, src.Content)
	if err != nil {
		return 0, false, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, false, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("%s has no text", filename))
	}

	doc := domain.Document{
		Filename:    filename,
		Text:        text,
		Fingerprint: dedup.Fingerprint(text),
		IngestedAt:  uc.now(),
	}

	duplicate, err := dedup.IsDuplicate(ctx, doc.Fingerprint, uc.index, batch)
	if err != nil {
		return 0, false, err
	}
	if duplicate {
		return 0, true, nil
	}

	chunks := uc.chunker.Split(doc.Text)
	if len(chunks) == 0 {
		return 0, false, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("%s produced no chunks", filename))
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, domain.IndexEntry{
			ID:   uuid.NewString(),
			Text: c.Text,
			Metadata: domain.ChunkMetadata{
				Filename:    doc.Filename,
				ChunkIndex:  c.Sequence,
				Fingerprint: doc.Fingerprint,
				IngestedAt:  doc.IngestedAt,
				ChunkLength: utf8.RuneCountInString(c.Text),
			},
		})
	}
	if err := uc.index.AddDocument(ctx, entries); err != nil {
		return 0, false, fmt.Errorf("index %s: %w", filename, err)
	}
	batch[doc.Fingerprint] = struct{}{}
	return len(entries), false, nil
}

func (uc *IngestUseCase) persist(ctx context.Context) {
	if uc.snapshot == nil || uc.store == nil {
		return
	}
	// A failed write disables persistence; the index keeps working in memory.
	if err := uc.store.Save(ctx, uc.snapshot.Entries()); err != nil {
		uc.logger.Warn("index_persistence_disabled", "error", err)
		uc.store = nil
	}
}
