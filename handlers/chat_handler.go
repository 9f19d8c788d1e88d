package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"documentiq-backend/cache"
	"documentiq-backend/models"
	"documentiq-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler handles HTTP requests for chat and conversations
type ChatHandler struct {
	chat  *service.ChatService
	cache *cache.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, cacheSvc *cache.Service) *ChatHandler {
	return &ChatHandler{
		chat:  chat,
		cache: cacheSvc,
	}
}

type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Language       string `json:"language"`
	TopK           int    `json:"top_k"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	serviceReq := service.ChatRequest{
		Message:  req.Message,
		Language: req.Language,
		TopK:     req.TopK,
	}
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_CONVERSATION_ID", "Invalid conversation_id format")
			return
		}
		serviceReq.ConversationID = &id
	}

	result, err := h.chat.Chat(c.Request.Context(), serviceReq)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			respondError(c, http.StatusBadRequest, "EMPTY_MESSAGE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "CHAT_FAILED",
			fmt.Sprintf("Failed to answer question: %v", err))
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	respondData(c, http.StatusOK, gin.H{
		"answer":           result.Answer,
		"sources":          sources,
		"conversation_id":  result.ConversationID,
		"message_id":       result.MessageID,
		"language":         result.Language,
		"response_time_ms": result.ResponseTimeMs,
		"cached":           result.Cached,
	})
}

// ListConversations handles GET /api/chat/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	convs, err := h.chat.ListConversations(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to list conversations: %v", err))
		return
	}

	if convs == nil {
		convs = []*models.Conversation{}
	}
	respondData(c, http.StatusOK, gin.H{
		"conversations": convs,
		"count":         len(convs),
	})
}

// GetConversation handles GET /api/chat/conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID format")
		return
	}

	conv, err := h.chat.GetConversation(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		return
	}

	respondData(c, http.StatusOK, conv)
}

// GetMessages handles GET /api/chat/conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID format")
		return
	}

	msgs, err := h.chat.GetMessages(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to list messages: %v", err))
		return
	}

	if msgs == nil {
		msgs = []*models.ConversationMessage{}
	}
	respondData(c, http.StatusOK, gin.H{
		"conversation_id": id,
		"messages":        msgs,
		"count":           len(msgs),
	})
}

type quickRatingRequest struct {
	MessageID      string `json:"message_id" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
	Rating         int    `json:"rating"`
}

// RateMessage handles POST /api/chat/rating/quick
func (h *ChatHandler) RateMessage(c *gin.Context) {
	var req quickRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_MESSAGE_ID", "Invalid message_id format")
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CONVERSATION_ID", "Invalid conversation_id format")
		return
	}

	err = h.chat.RateMessage(c.Request.Context(), service.RateMessageRequest{
		ConversationID: conversationID,
		MessageID:      messageID,
		Rating:         req.Rating,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRating) {
			respondError(c, http.StatusBadRequest, "INVALID_RATING", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to store rating: %v", err))
		return
	}

	respondData(c, http.StatusCreated, gin.H{
		"message_id": messageID,
		"rating":     req.Rating,
	})
}

type detailedFeedbackRequest struct {
	MessageID      string   `json:"message_id" binding:"required"`
	ConversationID string   `json:"conversation_id" binding:"required"`
	Rating         int      `json:"rating"`
	Comment        string   `json:"comment"`
	Categories     []string `json:"categories"`
}

// SubmitFeedback handles POST /api/chat/feedback/detailed
func (h *ChatHandler) SubmitFeedback(c *gin.Context) {
	var req detailedFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_MESSAGE_ID", "Invalid message_id format")
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CONVERSATION_ID", "Invalid conversation_id format")
		return
	}

	err = h.chat.SubmitFeedback(c.Request.Context(), service.SubmitFeedbackRequest{
		ConversationID: conversationID,
		MessageID:      messageID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Categories:     req.Categories,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRating) {
			respondError(c, http.StatusBadRequest, "INVALID_RATING", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to store feedback: %v", err))
		return
	}

	respondData(c, http.StatusCreated, gin.H{
		"message_id": messageID,
		"rating":     req.Rating,
	})
}

// CacheStats handles GET /api/chat/cache/stats
func (h *ChatHandler) CacheStats(c *gin.Context) {
	respondData(c, http.StatusOK, h.cache.Stats(c.Request.Context()))
}

// ClearCache handles POST /api/chat/cache/clear
func (h *ChatHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "CACHE_CLEAR_FAILED",
			fmt.Sprintf("Failed to clear cache: %v", err))
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"cleared": true,
		"stats":   h.cache.Stats(c.Request.Context()),
	})
}
