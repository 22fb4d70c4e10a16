package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/index/lexical"
)

func TestIngestChunksDocumentAndSkipsDuplicateContent(t *testing.T) {
	ix := lexical.New(lexical.DefaultMinScore)
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil)

	first, err := uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "python.txt", Content: []byte(pythonDoc)}})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.DocumentsAdded != 2 || first.DuplicatesSkipped != 0 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "renamed.txt", Content: []byte(pythonDoc)}})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.DocumentsAdded != 0 || second.DuplicatesSkipped != 1 {
		t.Fatalf("expected duplicate skip, got %+v", second)
	}
	if n, _ := ix.Count(context.Background()); n != 2 {
		t.Fatalf("expected index to stay at 2 entries, got %d", n)
	}
}

func TestIngestEntriesCarryMetadata(t *testing.T) {
	ix := &indexFake{}
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil)

	if _, err := uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "python.txt", Content: []byte(pythonDoc)}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(ix.added) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ix.added))
	}
	for i, e := range ix.added {
		m := e.Metadata
		if e.ID == "" || m.Filename != "python.txt" || m.ChunkIndex != i || m.Fingerprint == "" || m.IngestedAt.IsZero() || m.ChunkLength != len(e.Text) {
			t.Fatalf("unexpected entry %d: %+v", i, e)
		}
	}
	if ix.added[0].Metadata.Fingerprint != ix.added[1].Metadata.Fingerprint {
		t.Fatalf("expected chunks of one document to share its fingerprint")
	}
}

func TestIngestRejectsBadDocumentsWithoutAbortingBatch(t *testing.T) {
	ix := &indexFake{}
	extractor := &extractorFake{failFor: map[string]error{
		"blob.bin": domain.WrapError(domain.ErrInvalidInput, "extract", errors.New("not valid UTF-8 text")),
	}}
	uc := NewIngestUseCase(extractor, chunking.NewSplitter(5, 1), ix, nil)

	res, err := uc.Ingest(context.Background(), []domain.SourceDocument{
		{Filename: "blob.bin", Content: []byte{0xff}},
		{Filename: "blank.txt", Content: []byte("   \n ")},
		{Filename: "good.txt", Content: []byte("Go has goroutines and channels.")},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(res.FilesRejected) != 2 {
		t.Fatalf("expected 2 rejected files, got %+v", res.FilesRejected)
	}
	if len(res.FilesProcessed) != 1 || res.FilesProcessed[0] != "good.txt" || res.DocumentsAdded != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIngestSameContentTwiceInOneBatch(t *testing.T) {
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), &indexFake{}, nil)

	res, err := uc.Ingest(context.Background(), []domain.SourceDocument{
		{Filename: "a.txt", Content: []byte(pythonDoc)},
		{Filename: "b.txt", Content: []byte(pythonDoc)},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.DocumentsAdded != 2 || res.DuplicatesSkipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIngestIndexFailureAddsNothing(t *testing.T) {
	ix := &indexFake{addErr: errCapability}
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil)

	res, err := uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "a.txt", Content: []byte(pythonDoc)}})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.DocumentsAdded != 0 || len(res.FilesRejected) != 1 || len(ix.added) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	// The failed document was never indexed, so a retry is not a duplicate.
	ix.addErr = nil
	res, _ = uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "a.txt", Content: []byte(pythonDoc)}})
	if res.DocumentsAdded != 2 {
		t.Fatalf("expected retry to index, got %+v", res)
	}
}

func TestIngestPersistsSnapshotAfterBatch(t *testing.T) {
	ix := lexical.New(lexical.DefaultMinScore)
	store := &entryStoreFake{}
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil).WithPersistence(ix, store)

	_, _ = uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "a.txt", Content: []byte(pythonDoc)}})
	if store.saves != 1 || len(store.last) != 2 {
		t.Fatalf("expected one save of 2 entries, got saves=%d entries=%d", store.saves, len(store.last))
	}

	// A batch of only duplicates writes nothing.
	_, _ = uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "b.txt", Content: []byte(pythonDoc)}})
	if store.saves != 1 {
		t.Fatalf("expected no save for duplicate batch, got %d", store.saves)
	}
}

func TestIngestDisablesPersistenceAfterWriteFailure(t *testing.T) {
	ix := lexical.New(lexical.DefaultMinScore)
	store := &entryStoreFake{err: errors.New("read-only filesystem")}
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil).WithPersistence(ix, store)

	res, err := uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "a.txt", Content: []byte(pythonDoc)}})
	if err != nil || res.DocumentsAdded != 2 {
		t.Fatalf("expected in-memory ingest to succeed, got %+v %v", res, err)
	}
	_, _ = uc.Ingest(context.Background(), []domain.SourceDocument{{Filename: "c.txt", Content: []byte("Completely different content here.")}})
	if store.saves != 1 {
		t.Fatalf("expected persistence disabled after failure, got %d saves", store.saves)
	}
}

func TestIngestEmptyBatchIsInvalid(t *testing.T) {
	uc := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), &indexFake{}, nil)
	if _, err := uc.Ingest(context.Background(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
