package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"documentiq-backend/models"
	"documentiq-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles HTTP requests for knowledge-base documents
type DocumentHandler struct {
	ingest           *service.IngestService
	maxFileSize      int64
	allowedMimeTypes map[string]bool
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{
		ingest:      ingest,
		maxFileSize: 10 * 1024 * 1024, // 10MB
		// Indexing works on extracted text, so only text formats are accepted
		allowedMimeTypes: map[string]bool{
			"text/plain":    true,
			"text/markdown": true,
			"text/csv":      true,
		},
	}
}

// Upload handles POST /api/documents/upload. The document record is
// returned immediately in the processing state; chunking and embedding run
// in the background and flip the status to indexed or failed.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		mimeType = mimeTypeFromExtension(fileHeader.Filename)
	}
	if !h.allowedMimeTypes[mimeType] && !strings.HasPrefix(mimeType, "text/") {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE",
			"File type not allowed. Upload text documents (TXT, MD, CSV)")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}

	doc, err := h.ingest.UploadDocument(c.Request.Context(), service.UploadDocumentRequest{
		Filename: fileHeader.Filename,
		MimeType: mimeType,
		Title:    c.PostForm("title"),
		Category: c.PostForm("category"),
		Tags:     splitTags(c.PostForm("tags")),
		Layer:    c.PostForm("layer"),
		Content:  content,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLayer):
			respondError(c, http.StatusBadRequest, "INVALID_LAYER", err.Error())
		case errors.Is(err, service.ErrEmptyDocument):
			respondError(c, http.StatusBadRequest, "EMPTY_DOCUMENT", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED",
				fmt.Sprintf("Failed to upload document: %v", err))
		}
		return
	}

	// The request context dies with the response, so indexing gets its own
	go func(doc *models.Document, text string) {
		if err := h.ingest.IndexDocument(context.Background(), doc, text); err != nil {
			log.Printf("Warning: Failed to index document %s: %v", doc.ID, err)
		}
	}(doc, string(content))

	// 202: indexing is still running when the response goes out
	respondData(c, http.StatusAccepted, doc)
}

// List handles GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingest.ListDocuments(c.Request.Context(), c.Query("layer"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidLayer) {
			respondError(c, http.StatusBadRequest, "INVALID_LAYER", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR",
			fmt.Sprintf("Failed to list documents: %v", err))
		return
	}

	if docs == nil {
		docs = []*models.Document{}
	}
	respondData(c, http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// Get handles GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID format")
		return
	}

	doc, err := h.ingest.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Document not found")
		return
	}

	respondData(c, http.StatusOK, doc)
}

// Download handles GET /api/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID format")
		return
	}

	doc, reader, err := h.ingest.DownloadDocument(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED",
			fmt.Sprintf("Failed to download document: %v", err))
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.DataFromReader(http.StatusOK, doc.Size, doc.MimeType, reader, nil)
}

// Delete handles DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID format")
		return
	}

	if err := h.ingest.DeleteDocument(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "DELETE_FAILED",
			fmt.Sprintf("Failed to delete document: %v", err))
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"id":      id,
		"deleted": true,
	})
}

// mimeTypeFromExtension infers the MIME type when the client sent none
func mimeTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// splitTags parses the comma-separated tags form field
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
