package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryRecord is one logged chat query, the raw material for analytics
type QueryRecord struct {
	ID             uuid.UUID  `json:"id"`
	QueryText      string     `json:"query_text"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Language       string     `json:"language"`
	ResponseTimeMs float64    `json:"response_time_ms"`
	CacheHit       bool       `json:"cache_hit"`
	Sources        StringList `json:"sources"`      // cited document titles
	DocumentIDs    StringList `json:"document_ids"` // documents whose chunks were retrieved
	CreatedAt      time.Time  `json:"created_at"`
}

// QueryVolume buckets query counts by recency window
type QueryVolume struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
	Total   int `json:"total"`
}

// TopQuery is a frequently asked query with aggregate timings
type TopQuery struct {
	Query               string    `json:"query"`
	Count               int       `json:"count"`
	AverageResponseTime float64   `json:"average_response_time_ms"`
	LastAsked           time.Time `json:"last_asked"`
}

// DocumentUsage reports how often a document's chunks were retrieved
type DocumentUsage struct {
	DocumentID   string     `json:"document_id"`
	Title        string     `json:"title"`
	QueryCount   int        `json:"query_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// DailyMetrics is the aggregate for a single day
type DailyMetrics struct {
	Date                string  `json:"date"`
	QueryCount          int     `json:"query_count"`
	UniqueConversations int     `json:"unique_conversations"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// TimeRange bounds an analytics window
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AnalyticsSummary bundles the dashboard numbers for one time range
type AnalyticsSummary struct {
	QueryVolume         QueryVolume     `json:"query_volume"`
	TopQueries          []TopQuery      `json:"top_queries"`
	TopDocuments        []DocumentUsage `json:"top_documents"`
	AverageResponseTime float64         `json:"average_response_time"`
	TotalQueries        int             `json:"total_queries"`
	TimeRange           TimeRange       `json:"time_range"`
}
