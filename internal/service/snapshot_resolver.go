package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// CachedSnapshotResolver supplies the consistent rule snapshot an evaluation
// runs against. Snapshots are cached by store version with a TTL so that a
// version check (cheap) gates a full reload (expensive). A store failure is
// always surfaced: the resolver never falls back to a stale snapshot, since
// stale rules could mask an EMERGENCY classification.
type CachedSnapshotResolver struct {
	store  domain.RuleStore
	cache  *lru.Cache
	ttl    time.Duration
	logger *logrus.Logger
	mu     sync.Mutex
}

type cachedSnapshot struct {
	snapshot *domain.RuleSnapshot
	cachedAt time.Time
}

// NewCachedSnapshotResolver creates a resolver with an LRU cache of the given
// size and per-entry TTL.
func NewCachedSnapshotResolver(store domain.RuleStore, logger *logrus.Logger, cacheSize int, ttl time.Duration) (*CachedSnapshotResolver, error) {
	if cacheSize <= 0 {
		cacheSize = 4
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSnapshotResolver{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Resolve returns the snapshot for the store's current version, loading and
// caching it when needed.
func (r *CachedSnapshotResolver) Resolve(ctx context.Context) (*domain.RuleSnapshot, error) {
	version, err := r.store.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking rule store version: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.cache.Get(version); ok {
		cached := entry.(cachedSnapshot)
		if time.Since(cached.cachedAt) < r.ttl {
			r.logger.WithField("version", version).Debug("Rule snapshot cache hit")
			return cached.snapshot, nil
		}
		r.cache.Remove(version)
	}

	snapshot, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule snapshot: %w", err)
	}

	r.cache.Add(snapshot.Version, cachedSnapshot{
		snapshot: snapshot,
		cachedAt: time.Now(),
	})

	r.logger.WithFields(logrus.Fields{
		"version":    snapshot.Version,
		"conditions": len(snapshot.Conditions),
		"symptoms":   len(snapshot.Symptoms),
	}).Info("Loaded rule snapshot")

	return snapshot, nil
}
