package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"documentiq-backend/models"
	"documentiq-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateHandler handles HTTP requests for compliance document generation
type GenerateHandler struct {
	generate *service.GenerateService
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(generate *service.GenerateService) *GenerateHandler {
	return &GenerateHandler{generate: generate}
}

type generateRequest struct {
	DocumentType string `json:"document_type" binding:"required"`
	Topic        string `json:"topic" binding:"required"`
	Author       string `json:"author"`
	Layer        string `json:"layer"`
	Instructions string `json:"instructions"`
}

// Generate handles POST /api/generate/document
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.generate.GenerateDocument(c.Request.Context(), service.GenerateDocumentRequest{
		DocumentType: req.DocumentType,
		Topic:        req.Topic,
		Author:       req.Author,
		Layer:        req.Layer,
		Instructions: req.Instructions,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedDocType):
			respondError(c, http.StatusBadRequest, "UNSUPPORTED_DOCUMENT_TYPE", err.Error())
		case errors.Is(err, service.ErrEmptyTopic):
			respondError(c, http.StatusBadRequest, "EMPTY_TOPIC", err.Error())
		case errors.Is(err, service.ErrInvalidLayer):
			respondError(c, http.StatusBadRequest, "INVALID_LAYER", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "GENERATION_FAILED",
				fmt.Sprintf("Failed to generate document: %v", err))
		}
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	respondData(c, http.StatusCreated, gin.H{
		"document": result.Document,
		"content":  result.Content,
		"sources":  sources,
	})
}

// ListGenerated handles GET /api/generate/documents
func (h *GenerateHandler) ListGenerated(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	docs, err := h.generate.ListGenerated(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to list generated documents: %v", err))
		return
	}

	if docs == nil {
		docs = []*models.GeneratedDocument{}
	}
	respondData(c, http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// Download handles GET /api/generate/download/:id
func (h *GenerateHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID format")
		return
	}

	doc, reader, err := h.generate.DownloadGenerated(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Generated document not found")
		case errors.Is(err, service.ErrGeneratedFileMissing):
			respondError(c, http.StatusNotFound, "FILE_NOT_STORED", "Generated document has no stored file")
		default:
			respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED",
				fmt.Sprintf("Failed to download generated document: %v", err))
		}
		return
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED",
			fmt.Sprintf("Failed to read generated document: %v", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Reference+".md"))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", content)
}
