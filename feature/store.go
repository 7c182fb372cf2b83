package feature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrUnavailable is returned (wrapped) when the underlying source could not be loaded.
var ErrUnavailable = errors.New("Feature store unavailable")

const features_cache_key = "features"

// Store loads a Source once and keeps the result in memory. Features are cached for the
// lifetime of the store unless a cache expiration is configured.
type Store struct {
	source  Source
	gocache *gocache.Cache
	mu      *sync.Mutex
}

// NewStore returns a new Store for the source identified by 'uri'. If 'uri' contains a
// 'cache_expiration' query parameter (seconds) it is removed before the source is created
// and used as the expiration for the loaded collection.
func NewStore(ctx context.Context, uri string) (*Store, error) {

	u, err := url.Parse(uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse URI, %w", err)
	}

	q := u.Query()

	expires := 0 * time.Second
	str_expires := q.Get("cache_expiration")

	if str_expires != "" {

		int_expires, err := strconv.Atoi(str_expires)

		if err != nil {
			return nil, fmt.Errorf("Failed to parse cache_expiration parameter, %w", err)
		}

		expires = time.Duration(int_expires) * time.Second

		q.Del("cache_expiration")
		u.RawQuery = q.Encode()
	}

	source, err := NewSource(ctx, u.String())

	if err != nil {
		return nil, fmt.Errorf("Failed to create source, %w", err)
	}

	return NewStoreWithSource(ctx, source, expires), nil
}

// NewStoreWithSource returns a new Store reading from 'source'. A zero 'expires' value means
// features never expire.
func NewStoreWithSource(ctx context.Context, source Source, expires time.Duration) *Store {

	default_expiration := gocache.NoExpiration
	cleanup := 0 * time.Second

	if expires > 0 {
		default_expiration = expires
		cleanup = expires
	}

	gc := gocache.New(default_expiration, cleanup)

	s := &Store{
		source:  source,
		gocache: gc,
		mu:      new(sync.Mutex),
	}

	return s
}

// Load returns the feature collection, fetching it from the source if it has not been loaded
// yet (or has expired). Concurrent callers share a single fetch.
func (s *Store) Load(ctx context.Context) (*FeatureCollection, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.gocache.Get(features_cache_key)

	if ok {
		return v.(*FeatureCollection), nil
	}

	t1 := time.Now()

	fc, err := s.source.Load(ctx)

	if err != nil {
		slog.Error("Failed to load features", "error", err)
		return nil, fmt.Errorf("%w, %w", ErrUnavailable, err)
	}

	slog.Debug("Loaded features", "count", len(fc.Features), "time", time.Since(t1))

	s.gocache.Set(features_cache_key, fc, gocache.DefaultExpiration)
	return fc, nil
}

// Features returns the loaded features without fetching. The second return value is false
// if the store is unavailable (never loaded, failed or expired).
func (s *Store) Features() ([]*PointFeature, bool) {

	v, ok := s.gocache.Get(features_cache_key)

	if !ok {
		return nil, false
	}

	return v.(*FeatureCollection).Features, true
}

// Refresh discards the cached collection and loads it again.
func (s *Store) Refresh(ctx context.Context) (*FeatureCollection, error) {
	s.gocache.Delete(features_cache_key)
	return s.Load(ctx)
}
