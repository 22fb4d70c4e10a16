package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	ID             string    `json:"id" bson:"id"`
	ConversationID string    `json:"chat_id" bson:"chat_id"`
	Message        string    `json:"message" bson:"message"`
	Role           Role      `json:"sender" bson:"sender"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

type ChatReply struct {
	ConversationID  string        `json:"chat_id"`
	Response        string        `json:"response"`
	Source          Tier          `json:"source"`
	Confidence      float64       `json:"confidence"`
	SourceDocuments []string      `json:"source_documents"`
	Attempts        []TierAttempt `json:"attempts,omitempty"`
}

// HistoryStats summarizes the stored conversation history.
type HistoryStats struct {
	TotalMessages int `json:"total_messages"`
	UniqueChats   int `json:"unique_chats"`
}
