package lookup

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/balcao-erp/balcao-erp/internal/sale"
)

// Source is the backend search surface the Searcher consumes.
type Source interface {
	SearchClients(ctx context.Context, fragment string) ([]sale.Client, error)
	SearchProducts(ctx context.Context, fragment string) ([]sale.Product, error)
}

// Searcher resolves fragments through the backend with two protections for
// the remote side: concurrent identical fragments collapse into one fetch,
// and recent results are served from a short-lived redis cache. A nil cache
// client disables caching; cache failures degrade to a plain fetch.
type Searcher struct {
	source Source
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewSearcher builds a Searcher. cache may be nil.
func NewSearcher(source Source, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Clients searches clients by name fragment, sorted for pt-BR display.
func (s *Searcher) Clients(ctx context.Context, fragment string) ([]sale.Client, error) {
	return searchThrough(ctx, s, "clients", fragment, s.source.SearchClients, func(c sale.Client) string { return c.Name })
}

// Products searches products by name fragment, sorted for pt-BR display.
func (s *Searcher) Products(ctx context.Context, fragment string) ([]sale.Product, error) {
	return searchThrough(ctx, s, "products", fragment, s.source.SearchProducts, func(p sale.Product) string { return p.Name })
}

func searchThrough[T any](ctx context.Context, s *Searcher, kind, fragment string, fetch FetchFunc[T], name func(T) string) ([]T, error) {
	key := "lookup:" + kind + ":" + Fold(fragment)

	if data, ok := s.cacheGet(ctx, key); ok {
		var cached []T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("lookup cache entry unreadable", slog.String("key", key))
	}

	ch := s.group.DoChan(key, func() (any, error) {
		results, err := fetch(ctx, fragment)
		if err != nil {
			return nil, err
		}
		sortByName(results, name)
		if data, err := json.Marshal(results); err == nil {
			s.cacheSet(ctx, key, data)
		}
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]T), nil
	}
}

func (s *Searcher) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("lookup cache get", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	return data, true
}

func (s *Searcher) cacheSet(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("lookup cache set", slog.String("key", key), slog.Any("error", err))
	}
}
