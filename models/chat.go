package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Supported answer languages
const (
	LanguageEnglish  = "en"
	LanguagePolish   = "pl"
	LanguageRomanian = "ro"
)

// Conversation groups the messages of one chat session
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationMessage is a single turn in a conversation
type ConversationMessage struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Role           string     `json:"role"` // "user" or "assistant"
	Content        string     `json:"content"`
	Sources        StringList `json:"sources"`
	ResponseTimeMs *float64   `json:"response_time_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageRating is a quick 1-5 rating of an assistant message
type MessageRating struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	Rating         int       `json:"rating"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageFeedback is detailed feedback on an assistant message
type MessageFeedback struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      uuid.UUID  `json:"message_id"`
	Rating         int        `json:"rating"`
	Comment        string     `json:"comment,omitempty"`
	Categories     StringList `json:"categories"`
	CreatedAt      time.Time  `json:"created_at"`
}
