package repository

import (
	"context"

	"documentiq-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository handles database operations for conversations,
// their messages, and message feedback
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation creates a new conversation
func (r *ConversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (title, language)
		VALUES ($1, $2)
		RETURNING id, message_count, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		conv.Title,
		conv.Language,
	).Scan(&conv.ID, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)

	return err
}

// GetConversation retrieves a conversation by ID
func (r *ConversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
		SELECT id, title, language, message_count, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.Title,
		&conv.Language,
		&conv.MessageCount,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return conv, nil
}

// ListConversations retrieves the most recently active conversations
func (r *ConversationRepository) ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	query := `
		SELECT id, title, language, message_count, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		err := rows.Scan(
			&conv.ID,
			&conv.Title,
			&conv.Language,
			&conv.MessageCount,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// AddMessage appends a message to a conversation and bumps the
// conversation's message count and activity timestamp
func (r *ConversationRepository) AddMessage(ctx context.Context, msg *models.ConversationMessage) error {
	query := `
		INSERT INTO conversation_messages (
			conversation_id, role, content, sources, response_time_ms
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.Sources,
		msg.ResponseTimeMs,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return err
	}

	bump := `
		UPDATE conversations SET
			message_count = message_count + 1,
			updated_at = NOW()
		WHERE id = $1`

	_, err = r.db.Exec(ctx, bump, msg.ConversationID)
	return err
}

// ListMessages retrieves a conversation's messages in chronological order
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.ConversationMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, sources, response_time_ms, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.ConversationMessage
	for rows.Next() {
		msg := &models.ConversationMessage{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.Sources,
			&msg.ResponseTimeMs,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// AddRating stores a quick rating for a message
func (r *ConversationRepository) AddRating(ctx context.Context, rating *models.MessageRating) error {
	query := `
		INSERT INTO message_ratings (conversation_id, message_id, rating)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		rating.ConversationID,
		rating.MessageID,
		rating.Rating,
	).Scan(&rating.ID, &rating.CreatedAt)

	return err
}

// AddFeedback stores detailed feedback for a message
func (r *ConversationRepository) AddFeedback(ctx context.Context, feedback *models.MessageFeedback) error {
	query := `
		INSERT INTO message_feedback (
			conversation_id, message_id, rating, comment, categories
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		feedback.ConversationID,
		feedback.MessageID,
		feedback.Rating,
		feedback.Comment,
		feedback.Categories,
	).Scan(&feedback.ID, &feedback.CreatedAt)

	return err
}
