package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"documentiq-backend/cache"
	"documentiq-backend/models"
)

const (
	// Dashboards poll these endpoints, so aggregates are cached briefly
	analyticsCacheTTL = 60 * time.Second

	defaultWindowDays = 30
	maxWindowDays     = 365
	defaultTopN       = 10
	maxTopN           = 50
)

// QueryAggregator supplies aggregates computed over the query log
type QueryAggregator interface {
	Volume(ctx context.Context) (models.QueryVolume, error)
	TopQueries(ctx context.Context, days, limit int) ([]models.TopQuery, error)
	TopDocuments(ctx context.Context, days, limit int) ([]models.DocumentUsage, error)
	AverageResponseTime(ctx context.Context, days int) (float64, error)
	DailyMetrics(ctx context.Context, days int) ([]models.DailyMetrics, error)
	Count(ctx context.Context, days int) (int, error)
}

// AnalyticsService exposes usage analytics over logged queries
type AnalyticsService struct {
	queries QueryAggregator
	cache   *cache.Service
}

// NewAnalyticsService creates a new analytics service. The cache may be nil,
// in which case every call hits the database.
func NewAnalyticsService(queries QueryAggregator, cacheSvc *cache.Service) *AnalyticsService {
	return &AnalyticsService{
		queries: queries,
		cache:   cacheSvc,
	}
}

// Volume returns query counts for the last day, week, and month
func (s *AnalyticsService) Volume(ctx context.Context) (models.QueryVolume, error) {
	var volume models.QueryVolume
	if err := s.ensureAggregator(); err != nil {
		return volume, err
	}

	key := cache.Key(cache.AnalyticsPrefix, []string{"volume"}, nil)
	if s.lookup(ctx, key, &volume) {
		return volume, nil
	}

	volume, err := s.queries.Volume(ctx)
	if err != nil {
		return volume, err
	}
	s.store(ctx, key, volume)
	return volume, nil
}

// TopQueries returns the most frequent queries in the window
func (s *AnalyticsService) TopQueries(ctx context.Context, days, limit int) ([]models.TopQuery, error) {
	if err := s.ensureAggregator(); err != nil {
		return nil, err
	}
	days, limit = normalizeWindow(days), normalizeTopN(limit)

	key := cache.Key(cache.AnalyticsPrefix, []string{"top-queries"}, windowParams(days, limit))
	var queries []models.TopQuery
	if s.lookup(ctx, key, &queries) {
		return queries, nil
	}

	queries, err := s.queries.TopQueries(ctx, days, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, queries)
	return queries, nil
}

// TopDocuments returns the most retrieved documents in the window
func (s *AnalyticsService) TopDocuments(ctx context.Context, days, limit int) ([]models.DocumentUsage, error) {
	if err := s.ensureAggregator(); err != nil {
		return nil, err
	}
	days, limit = normalizeWindow(days), normalizeTopN(limit)

	key := cache.Key(cache.AnalyticsPrefix, []string{"top-documents"}, windowParams(days, limit))
	var docs []models.DocumentUsage
	if s.lookup(ctx, key, &docs) {
		return docs, nil
	}

	docs, err := s.queries.TopDocuments(ctx, days, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, docs)
	return docs, nil
}

// ResponseTime returns the average response time in milliseconds for the window
func (s *AnalyticsService) ResponseTime(ctx context.Context, days int) (float64, error) {
	if err := s.ensureAggregator(); err != nil {
		return 0, err
	}
	days = normalizeWindow(days)

	key := cache.Key(cache.AnalyticsPrefix, []string{"response-time"}, windowParams(days, 0))
	var avg float64
	if s.lookup(ctx, key, &avg) {
		return avg, nil
	}

	avg, err := s.queries.AverageResponseTime(ctx, days)
	if err != nil {
		return 0, err
	}
	s.store(ctx, key, avg)
	return avg, nil
}

// DailyMetrics returns per-day aggregates for the window
func (s *AnalyticsService) DailyMetrics(ctx context.Context, days int) ([]models.DailyMetrics, error) {
	if err := s.ensureAggregator(); err != nil {
		return nil, err
	}
	days = normalizeWindow(days)

	key := cache.Key(cache.AnalyticsPrefix, []string{"daily"}, windowParams(days, 0))
	var metrics []models.DailyMetrics
	if s.lookup(ctx, key, &metrics) {
		return metrics, nil
	}

	metrics, err := s.queries.DailyMetrics(ctx, days)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, metrics)
	return metrics, nil
}

// Summary bundles the dashboard aggregates for one window
func (s *AnalyticsService) Summary(ctx context.Context, days int) (*models.AnalyticsSummary, error) {
	if err := s.ensureAggregator(); err != nil {
		return nil, err
	}
	days = normalizeWindow(days)

	key := cache.Key(cache.AnalyticsPrefix, []string{"summary"}, windowParams(days, 0))
	var summary models.AnalyticsSummary
	if s.lookup(ctx, key, &summary) {
		return &summary, nil
	}

	volume, err := s.queries.Volume(ctx)
	if err != nil {
		return nil, err
	}
	topQueries, err := s.queries.TopQueries(ctx, days, defaultTopN)
	if err != nil {
		return nil, err
	}
	topDocuments, err := s.queries.TopDocuments(ctx, days, defaultTopN)
	if err != nil {
		return nil, err
	}
	avgResponse, err := s.queries.AverageResponseTime(ctx, days)
	if err != nil {
		return nil, err
	}
	total, err := s.queries.Count(ctx, days)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	summary = models.AnalyticsSummary{
		QueryVolume:         volume,
		TopQueries:          topQueries,
		TopDocuments:        topDocuments,
		AverageResponseTime: avgResponse,
		TotalQueries:        total,
		TimeRange: models.TimeRange{
			Start: end.AddDate(0, 0, -days),
			End:   end,
		},
	}
	s.store(ctx, key, summary)
	return &summary, nil
}

func (s *AnalyticsService) ensureAggregator() error {
	if s.queries == nil {
		return errors.New("query aggregator not set")
	}
	return nil
}

func (s *AnalyticsService) lookup(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.GetJSON(ctx, key, out)
}

func (s *AnalyticsService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.SetJSON(ctx, key, value, analyticsCacheTTL)
}

func normalizeWindow(days int) int {
	if days <= 0 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

func normalizeTopN(limit int) int {
	if limit <= 0 {
		return defaultTopN
	}
	if limit > maxTopN {
		return maxTopN
	}
	return limit
}

func windowParams(days, limit int) map[string]string {
	params := map[string]string{"days": strconv.Itoa(days)}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	return params
}
