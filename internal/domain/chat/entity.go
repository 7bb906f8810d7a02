package chat

import "time"

// Role enum
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message in a conversation
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Query sent for one user question
type Query struct {
	UploadID       string `json:"upload_id"`
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Answer returned by the remote assistant
type Answer struct {
	Answer         string    `json:"answer"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}
