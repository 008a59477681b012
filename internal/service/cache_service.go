package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

const (
	courseListKeyPrefix = "courses:list:"
	courseItemKeyPrefix = "courses:item:"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the course cache with metrics. Failures degrade to misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether key was found and decoded into dest.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key with the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.defaultTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateCourse drops the cached course and every cached listing.
func (s *CacheService) InvalidateCourse(ctx context.Context, courseID string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Delete(ctx, courseItemKey(courseID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("course_id", courseID), zap.Error(err))
		return err
	}
	if err := s.repo.DeleteByPattern(ctx, courseListKeyPrefix+"*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", courseListKeyPrefix+"*"), zap.Error(err))
		return err
	}
	return nil
}

func courseItemKey(id string) string {
	return courseItemKeyPrefix + id
}

func courseListKey(department, search string) string {
	return fmt.Sprintf("%sdept=%s:q=%s", courseListKeyPrefix, department, search)
}
