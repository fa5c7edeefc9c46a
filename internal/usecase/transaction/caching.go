package transaction

import (
	"context"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

// ListCache stores list pages keyed by the full filter/sort/page tuple.
// Get also returns the cache generation it looked in; Set only stores into
// that generation, so a page read before an invalidation is never served after it.
type ListCache interface {
	Get(ctx context.Context, key string) (page *domain.Page[domain.Transaction], gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, key string, page *domain.Page[domain.Transaction]) error
	Invalidate(ctx context.Context) error
}

// CachingService is a read-through cache in front of a UseCase.
// Every successful create or delete invalidates all cached pages.
// Cache failures are logged and the call falls through to the wrapped UseCase.
type CachingService struct {
	Next  UseCase
	Cache ListCache
}

// NewCachingService creates a new CachingService
func NewCachingService(next UseCase, cache ListCache) *CachingService {
	return &CachingService{Next: next, Cache: cache}
}

// Create records the transaction then invalidates cached pages
func (s *CachingService) Create(ctx context.Context, input CreateInput) (*domain.Transaction, error) {
	t, err := s.Next.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return t, nil
}

// Delete removes the transaction then invalidates cached pages
func (s *CachingService) Delete(ctx context.Context, id int64) error {
	if err := s.Next.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// List serves the page from the cache, filling it on a miss
func (s *CachingService) List(ctx context.Context, input ListInput) (*domain.Page[domain.Transaction], error) {
	query, err := ResolveListQuery(input)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	key := query.CacheKey()

	page, gen, ok, cacheErr := s.Cache.Get(ctx, key)
	if cacheErr != nil {
		log.Warn().Err(cacheErr).Str("cache_key", key).Msg("list cache read failed")
	} else if ok {
		return page, nil
	}

	page, err = s.Next.List(ctx, input)
	if err != nil {
		return nil, err
	}

	// The generation is unknown when the read failed
	if cacheErr != nil {
		return page, nil
	}
	if err := s.Cache.Set(ctx, gen, key, page); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("list cache write failed")
	}

	return page, nil
}

func (s *CachingService) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("list cache invalidation failed")
	}
}
