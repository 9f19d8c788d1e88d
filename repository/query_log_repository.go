package repository

import (
	"context"
	"fmt"
	"time"

	"documentiq-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryLogRepository handles database operations for the query log that
// feeds the analytics dashboard
type QueryLogRepository struct {
	db *pgxpool.Pool
}

// NewQueryLogRepository creates a new query log repository
func NewQueryLogRepository(db *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Insert logs one answered query
func (r *QueryLogRepository) Insert(ctx context.Context, record *models.QueryRecord) error {
	query := `
		INSERT INTO query_logs (
			query_text, conversation_id, language, response_time_ms,
			cache_hit, sources, document_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		record.QueryText,
		record.ConversationID,
		record.Language,
		record.ResponseTimeMs,
		record.CacheHit,
		record.Sources,
		record.DocumentIDs,
	).Scan(&record.ID, &record.CreatedAt)

	return err
}

// Volume counts queries over the standard recency windows
func (r *QueryLogRepository) Volume(ctx context.Context) (models.QueryVolume, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE created_at >= NOW() - make_interval(days => 1)),
			count(*) FILTER (WHERE created_at >= NOW() - make_interval(days => 7)),
			count(*) FILTER (WHERE created_at >= NOW() - make_interval(days => 30)),
			count(*)
		FROM query_logs`

	var volume models.QueryVolume
	err := r.db.QueryRow(ctx, query).Scan(
		&volume.Daily,
		&volume.Weekly,
		&volume.Monthly,
		&volume.Total,
	)
	if err != nil {
		return models.QueryVolume{}, fmt.Errorf("failed to count query volume: %w", err)
	}

	return volume, nil
}

// TopQueries returns the most frequent queries of the last N days. Queries
// are grouped case-insensitively so casing variants count as one.
func (r *QueryLogRepository) TopQueries(ctx context.Context, days, limit int) ([]models.TopQuery, error) {
	query := `
		SELECT
			lower(query_text),
			count(*),
			coalesce(avg(response_time_ms), 0),
			max(created_at)
		FROM query_logs
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY lower(query_text)
		ORDER BY count(*) DESC, max(created_at) DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top queries: %w", err)
	}
	defer rows.Close()

	var queries []models.TopQuery
	for rows.Next() {
		var top models.TopQuery
		err := rows.Scan(&top.Query, &top.Count, &top.AverageResponseTime, &top.LastAsked)
		if err != nil {
			return nil, fmt.Errorf("failed to scan top query: %w", err)
		}
		queries = append(queries, top)
	}

	return queries, rows.Err()
}

// TopDocuments returns the documents whose chunks were retrieved most often
// in the last N days. A document deleted since it was queried keeps its
// identifier but loses its title.
func (r *QueryLogRepository) TopDocuments(ctx context.Context, days, limit int) ([]models.DocumentUsage, error) {
	query := `
		SELECT
			ids.document_id,
			coalesce(d.title, ''),
			count(*),
			max(q.created_at)
		FROM query_logs q
		CROSS JOIN LATERAL jsonb_array_elements_text(q.document_ids) AS ids(document_id)
		LEFT JOIN documents d ON d.id::text = ids.document_id
		WHERE q.created_at >= NOW() - make_interval(days => $1)
		GROUP BY ids.document_id, d.title
		ORDER BY count(*) DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentUsage
	for rows.Next() {
		var usage models.DocumentUsage
		var lastAccessed time.Time
		err := rows.Scan(&usage.DocumentID, &usage.Title, &usage.QueryCount, &lastAccessed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document usage: %w", err)
		}
		usage.LastAccessed = &lastAccessed
		docs = append(docs, usage)
	}

	return docs, rows.Err()
}

// AverageResponseTime reports the mean response time in milliseconds over
// the last N days, 0 when no queries were logged
func (r *QueryLogRepository) AverageResponseTime(ctx context.Context, days int) (float64, error) {
	query := `
		SELECT coalesce(avg(response_time_ms), 0)
		FROM query_logs
		WHERE created_at >= NOW() - make_interval(days => $1)`

	var avg float64
	err := r.db.QueryRow(ctx, query, days).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average response time: %w", err)
	}

	return avg, nil
}

// DailyMetrics aggregates per-day usage over the last N days
func (r *QueryLogRepository) DailyMetrics(ctx context.Context, days int) ([]models.DailyMetrics, error) {
	query := `
		SELECT
			created_at::date,
			count(*),
			count(DISTINCT conversation_id),
			coalesce(avg(response_time_ms), 0)
		FROM query_logs
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY created_at::date
		ORDER BY created_at::date`

	rows, err := r.db.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.DailyMetrics
	for rows.Next() {
		var day models.DailyMetrics
		var date time.Time
		err := rows.Scan(&date, &day.QueryCount, &day.UniqueConversations, &day.AverageResponseTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily metrics: %w", err)
		}
		day.Date = date.Format("2006-01-02")
		metrics = append(metrics, day)
	}

	return metrics, rows.Err()
}

// Count returns the total number of logged queries in the last N days
func (r *QueryLogRepository) Count(ctx context.Context, days int) (int, error) {
	query := `
		SELECT count(*)
		FROM query_logs
		WHERE created_at >= NOW() - make_interval(days => $1)`

	var count int
	err := r.db.QueryRow(ctx, query, days).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queries: %w", err)
	}

	return count, nil
}
