package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func TestChunkRepositoryLoadDecodesVector(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT id, text, filename, chunk_id, content_hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "text", "filename", "chunk_id", "content_hash", "upload_timestamp", "chunk_length", "vector"}).
			AddRow("c1", "Python rocks", "py.txt", 0, "fp", ts, 12, []byte(`[0.5,0.25]`)).
			AddRow("c2", "No vector", "py.txt", 1, "fp", ts, 9, nil))

	entries, err := NewChunkRepository(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if len(entries[0].Vector) != 2 || entries[0].Vector[1] != 0.25 {
		t.Fatalf("unexpected vector %v", entries[0].Vector)
	}
	if entries[1].Vector != nil || entries[1].Metadata.ChunkIndex != 1 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChunkRepositorySaveRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO knowledge_chunks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO knowledge_chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewChunkRepository(db).Save(context.Background(), []domain.IndexEntry{
		{ID: "a", Text: "a"},
		{ID: "b", Text: "b"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversationRepositoryListReturnsOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	mock.ExpectQuery("SELECT id, chat_id, message, sender, timestamp").
		WithArgs("chat-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "message", "sender", "timestamp"}).
			AddRow("2", "chat-1", "answer", "assistant", t2).
			AddRow("1", "chat-1", "question", "user", t1))

	turns, err := NewConversationRepository(db).List(context.Background(), "chat-1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(turns) != 2 || turns[0].ID != "1" || turns[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected turns %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversationRepositoryAppendFillsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO chat_history").
		WithArgs(sqlmock.AnyArg(), "chat-1", "hello", "user", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewConversationRepository(db).Append(context.Background(), domain.ConversationTurn{
		ConversationID: "chat-1",
		Message:        "hello",
		Role:           domain.RoleUser,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConversationRepositoryDeleteAndStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM chat_history").
		WithArgs("chat-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(DISTINCT chat_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "chats"}).AddRow(6, 2))

	repo := NewConversationRepository(db)
	n, err := repo.Delete(context.Background(), "chat-1")
	if err != nil || n != 4 {
		t.Fatalf("Delete() = %d, %v; want 4", n, err)
	}
	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalMessages != 6 || stats.UniqueChats != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
