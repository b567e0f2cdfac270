package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/metrics"
	"mediatrack/internal/models"

	"github.com/rs/zerolog"
)

// Cache is the JSON cache the provider reads through. cache.JSON satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedProvider serves lookups and searches from the cache before asking next.
// Cache failures are logged and never fail the request.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCachedProvider(next Provider, c Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl, log: logging.Component("catalog-cache")}
}

func (p *CachedProvider) Lookup(ctx context.Context, id int64, kind models.MediaKind) (*models.MediaItem, error) {
	key := fmt.Sprintf("catalog:lookup:%s:%d", kind, id)

	var cached models.MediaItem
	if ok, err := p.cache.GetJSON(ctx, key, &cached); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		metrics.CatalogRequests.WithLabelValues("lookup", "cache_hit").Inc()
		return &cached, nil
	}

	item, err := p.next.Lookup(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	if err := p.cache.SetJSON(ctx, key, item, p.ttl); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return item, nil
}

func (p *CachedProvider) Search(ctx context.Context, query string) ([]models.MediaItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.MediaItem{}, nil
	}
	key := "catalog:search:" + q

	var cached []models.MediaItem
	if ok, err := p.cache.GetJSON(ctx, key, &cached); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		metrics.CatalogRequests.WithLabelValues("search", "cache_hit").Inc()
		return cached, nil
	}

	items, err := p.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := p.cache.SetJSON(ctx, key, items, p.ttl); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return items, nil
}
