package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"documentiq-backend/cache"
	"documentiq-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAggregator struct {
	volumeCalls int
	topQueries  int
	topDocs     int
	avgCalls    int
	dailyCalls  int
	countCalls  int

	lastDays  int
	lastLimit int
	err       error
}

func (a *stubAggregator) Volume(ctx context.Context) (models.QueryVolume, error) {
	a.volumeCalls++
	if a.err != nil {
		return models.QueryVolume{}, a.err
	}
	return models.QueryVolume{Daily: 12, Weekly: 80, Monthly: 310, Total: 950}, nil
}

func (a *stubAggregator) TopQueries(ctx context.Context, days, limit int) ([]models.TopQuery, error) {
	a.topQueries++
	a.lastDays, a.lastLimit = days, limit
	if a.err != nil {
		return nil, a.err
	}
	return []models.TopQuery{{Query: "what is the welding procedure?", Count: 42, AverageResponseTime: 310.5}}, nil
}

func (a *stubAggregator) TopDocuments(ctx context.Context, days, limit int) ([]models.DocumentUsage, error) {
	a.topDocs++
	a.lastDays, a.lastLimit = days, limit
	if a.err != nil {
		return nil, a.err
	}
	return []models.DocumentUsage{{DocumentID: "doc-1", Title: "Welding SOP", QueryCount: 37}}, nil
}

func (a *stubAggregator) AverageResponseTime(ctx context.Context, days int) (float64, error) {
	a.avgCalls++
	a.lastDays = days
	if a.err != nil {
		return 0, a.err
	}
	return 287.3, nil
}

func (a *stubAggregator) DailyMetrics(ctx context.Context, days int) ([]models.DailyMetrics, error) {
	a.dailyCalls++
	a.lastDays = days
	if a.err != nil {
		return nil, a.err
	}
	return []models.DailyMetrics{{Date: "2026-08-24", QueryCount: 18, UniqueConversations: 6, AverageResponseTime: 295.0}}, nil
}

func (a *stubAggregator) Count(ctx context.Context, days int) (int, error) {
	a.countCalls++
	if a.err != nil {
		return 0, a.err
	}
	return 310, nil
}

func newAnalyticsTestService(agg *stubAggregator) *AnalyticsService {
	return NewAnalyticsService(agg, cache.NewService(cache.NewMemoryBackend(100)))
}

func TestAnalyticsService_Summary(t *testing.T) {
	agg := &stubAggregator{}
	service := newAnalyticsTestService(agg)

	summary, err := service.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 950, summary.QueryVolume.Total)
	assert.Equal(t, 310, summary.TotalQueries)
	assert.InDelta(t, 287.3, summary.AverageResponseTime, 0.001)
	require.Len(t, summary.TopQueries, 1)
	require.Len(t, summary.TopDocuments, 1)

	wantStart := summary.TimeRange.End.AddDate(0, 0, -30)
	assert.WithinDuration(t, wantStart, summary.TimeRange.Start, time.Second)
}

func TestAnalyticsService_Summary_CachedWithinTTL(t *testing.T) {
	agg := &stubAggregator{}
	service := newAnalyticsTestService(agg)
	ctx := context.Background()

	first, err := service.Summary(ctx, 30)
	require.NoError(t, err)
	second, err := service.Summary(ctx, 30)
	require.NoError(t, err)

	assert.Equal(t, first.TotalQueries, second.TotalQueries)
	assert.Equal(t, 1, agg.volumeCalls, "repeated summary must be served from cache")
	assert.Equal(t, 1, agg.topQueries)
	assert.Equal(t, 1, agg.topDocs)
	assert.Equal(t, 1, agg.avgCalls)
	assert.Equal(t, 1, agg.countCalls)

	// A different window is a different cache entry
	_, err = service.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.volumeCalls)
}

func TestAnalyticsService_Volume_Cached(t *testing.T) {
	agg := &stubAggregator{}
	service := newAnalyticsTestService(agg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		volume, err := service.Volume(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12, volume.Daily)
	}
	assert.Equal(t, 1, agg.volumeCalls)
}

func TestAnalyticsService_ResponseTime_CachedPerWindow(t *testing.T) {
	agg := &stubAggregator{}
	service := newAnalyticsTestService(agg)
	ctx := context.Background()

	avg, err := service.ResponseTime(ctx, 30)
	require.NoError(t, err)
	assert.InDelta(t, 287.3, avg, 0.001)

	_, err = service.ResponseTime(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.avgCalls, "repeated window must be served from cache")

	_, err = service.ResponseTime(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.avgCalls)
	assert.Equal(t, 7, agg.lastDays)
}

func TestAnalyticsService_WindowAndLimitNormalized(t *testing.T) {
	agg := &stubAggregator{}
	service := newAnalyticsTestService(agg)
	ctx := context.Background()

	_, err := service.TopQueries(ctx, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultWindowDays, agg.lastDays)
	assert.Equal(t, defaultTopN, agg.lastLimit)

	_, err = service.TopDocuments(ctx, 9999, 9999)
	require.NoError(t, err)
	assert.Equal(t, maxWindowDays, agg.lastDays)
	assert.Equal(t, maxTopN, agg.lastLimit)

	_, err = service.DailyMetrics(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultWindowDays, agg.lastDays)
}

func TestAnalyticsService_WithoutCacheHitsAggregatorEveryTime(t *testing.T) {
	agg := &stubAggregator{}
	service := NewAnalyticsService(agg, nil)
	ctx := context.Background()

	_, err := service.Volume(ctx)
	require.NoError(t, err)
	_, err = service.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.volumeCalls)
}

func TestAnalyticsService_AggregatorErrorPropagates(t *testing.T) {
	agg := &stubAggregator{err: errors.New("relation query_logs does not exist")}
	service := newAnalyticsTestService(agg)

	_, err := service.Summary(context.Background(), 30)
	require.Error(t, err)

	_, err = service.TopQueries(context.Background(), 7, 5)
	require.Error(t, err)
}

func TestAnalyticsService_MissingAggregator(t *testing.T) {
	service := NewAnalyticsService(nil, nil)
	_, err := service.Summary(context.Background(), 30)
	assert.EqualError(t, err, "query aggregator not set")
}
