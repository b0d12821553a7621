package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// CacheClient caches remote diagnosis responses in Redis. Keys hash the full
// session input, so identical sessions reuse the remote answer without a
// second upstream call.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a cache client from the cache config.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: ttl,
	}, nil
}

type cachedDiagnoses struct {
	Diagnoses []domain.RemoteDiagnosis `json:"diagnoses"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// GetDiagnoses retrieves a cached remote response for the session input.
func (c *CacheClient) GetDiagnoses(
	ctx context.Context,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
) ([]domain.RemoteDiagnosis, bool, error) {
	key := c.sessionKey(patient, selected)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading diagnosis cache: %w", err)
	}

	var cached cachedDiagnoses
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Diagnoses, true, nil
}

// SetDiagnoses caches a remote response for the session input.
func (c *CacheClient) SetDiagnoses(
	ctx context.Context,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
	diagnoses []domain.RemoteDiagnosis,
	ttl time.Duration,
) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedDiagnoses{
		Diagnoses: diagnoses,
		CachedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshaling diagnosis cache entry: %w", err)
	}

	return c.redis.Set(ctx, c.sessionKey(patient, selected), payload, ttl).Err()
}

// Ping checks the redis connection.
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// sessionKey hashes the session input. Symptoms are sorted so key equality
// does not depend on selection order.
func (c *CacheClient) sessionKey(patient domain.PatientContext, selected []domain.SelectedSymptom) string {
	sorted := make([]domain.SelectedSymptom, len(selected))
	copy(sorted, selected)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SymptomID < sorted[j].SymptomID })

	data, _ := json.Marshal(struct {
		Patient  domain.PatientContext    `json:"patient"`
		Selected []domain.SelectedSymptom `json:"selected"`
	}{patient, sorted})

	hash := sha256.Sum256(data)
	return fmt.Sprintf("aidx:session:%x", hash[:12])
}
