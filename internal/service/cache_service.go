package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	appErrors "github.com/golabing/console/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheOptions configures a CacheService.
type CacheOptions struct {
	Enabled    bool
	DefaultTTL time.Duration
	LocalSize  int
}

// CacheService is a two-tier read cache: an in-process expirable LRU in front
// of the shared Redis repository. Either tier may be absent.
type CacheService struct {
	repo       CacheRepository
	local      *expirable.LRU[string, []byte]
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, opts CacheOptions, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	svc := &CacheService{repo: repo, metrics: metrics, defaultTTL: ttl, logger: logger, enabled: opts.Enabled}
	if opts.LocalSize > 0 {
		svc.local = expirable.NewLRU[string, []byte](opts.LocalSize, nil, ttl)
	}
	return svc
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && (s.repo != nil || s.local != nil)
}

// Get attempts to retrieve a cached entry. It returns true when either tier was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	if s.local != nil {
		start := time.Now()
		raw, ok := s.local.Get(key)
		if ok {
			if err := json.Unmarshal(raw, dest); err == nil {
				s.metrics.RecordCacheOperation(CacheTierLocal, true, time.Since(start))
				return true, nil
			}
			s.local.Remove(key)
		}
		s.metrics.RecordCacheOperation(CacheTierLocal, false, time.Since(start))
	}

	if s.repo == nil {
		return false, nil
	}

	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(CacheTierShared, false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(CacheTierShared, true, duration)
	s.storeLocal(key, dest)
	return true, nil
}

// Set stores the value in both tiers.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.storeLocal(key, value)
	if s.repo == nil {
		return nil
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values matching the glob pattern from both tiers.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if s.local != nil {
		for _, key := range s.local.Keys() {
			if ok, _ := path.Match(pattern, key); ok {
				s.local.Remove(key)
			}
		}
	}
	if s.repo == nil {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

func (s *CacheService) storeLocal(key string, value interface{}) {
	if s.local == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.local.Add(key, raw)
}
