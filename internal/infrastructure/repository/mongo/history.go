package mongo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const historyCollection = "chat_history"

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

type HistoryStore struct {
	collection *mongo.Collection
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return newHistoryStore(db.Collection(historyCollection))
}

func newHistoryStore(collection *mongo.Collection) *HistoryStore {
	return &HistoryStore{collection: collection}
}

func (s *HistoryStore) Append(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	if _, err := s.collection.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// List returns the latest limit turns of a conversation, oldest first.
func (s *HistoryStore) List(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"chat_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find chat turns: %w", err)
	}
	defer cursor.Close(ctx)

	var turns []domain.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("decode chat turns: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

func (s *HistoryStore) Delete(ctx context.Context, conversationID string) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"chat_id": conversationID})
	if err != nil {
		return 0, fmt.Errorf("delete chat turns: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *HistoryStore) Stats(ctx context.Context) (domain.HistoryStats, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return domain.HistoryStats{}, fmt.Errorf("count chat turns: %w", err)
	}
	chats, err := s.collection.Distinct(ctx, "chat_id", bson.M{})
	if err != nil {
		return domain.HistoryStats{}, fmt.Errorf("distinct chat ids: %w", err)
	}
	return domain.HistoryStats{TotalMessages: int(total), UniqueChats: len(chats)}, nil
}
