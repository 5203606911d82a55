// Package cache provides Redis-based caching for board tree snapshots.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"matrix-board-platform/config"
	"matrix-board-platform/internal/logging"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return ErrCacheMiss and callers
// fall back to database reads.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	log          zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int

	maxFailures int
}

// ErrCacheMiss is returned when a key is absent or Redis is degraded.
var ErrCacheMiss = fmt.Errorf("cache miss")

const (
	treeKeyFormat = "member:%d:board:%d:tree"

	// Tree snapshots are invalidated on every structural event, so the TTL
	// only bounds staleness across missed invalidations.
	DefaultTreeTTL = 10 * time.Minute
)

// NewCacheService creates a CacheService and verifies connectivity. A failed
// initial connection returns the service in degraded mode rather than an
// error; the engine works without Redis.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:      client,
		config:      cfg,
		log:         logging.WithComponent("cache"),
		maxFailures: 3,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.log.Warn().Err(err).Msg("initial redis connection failed, running degraded")
		return cs, nil
	}

	cs.healthy = true
	cs.log.Info().Str("address", cfg.Address).Msg("redis connected")
	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.log.Warn().Int("failures", cs.failureCount).Msg("redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount = 0
	if !cs.healthy {
		cs.log.Info().Msg("redis recovered")
		cs.healthy = true
	}
}

func treeKey(memberID int64, board int) string {
	return fmt.Sprintf(treeKeyFormat, memberID, board)
}

// GetTree returns a cached tree snapshot, unmarshalled into dest.
func (cs *CacheService) GetTree(ctx context.Context, memberID int64, board int, dest interface{}) error {
	if !cs.IsHealthy() {
		return ErrCacheMiss
	}

	raw, err := cs.client.Get(ctx, treeKey(memberID, board)).Bytes()
	if err == redis.Nil {
		cs.recordSuccess()
		return ErrCacheMiss
	}
	if err != nil {
		cs.recordFailure()
		return ErrCacheMiss
	}
	cs.recordSuccess()

	if err := json.Unmarshal(raw, dest); err != nil {
		// Corrupt entry, drop it.
		cs.client.Del(ctx, treeKey(memberID, board))
		return ErrCacheMiss
	}
	return nil
}

// SetTree stores a tree snapshot. Failures are swallowed after updating the
// health state; caching is best effort.
func (cs *CacheService) SetTree(ctx context.Context, memberID int64, board int, tree interface{}) {
	if !cs.IsHealthy() {
		return
	}

	raw, err := json.Marshal(tree)
	if err != nil {
		return
	}
	if err := cs.client.Set(ctx, treeKey(memberID, board), raw, DefaultTreeTTL).Err(); err != nil {
		cs.recordFailure()
		return
	}
	cs.recordSuccess()
}

// InvalidateTree drops a member's snapshot on one board.
func (cs *CacheService) InvalidateTree(ctx context.Context, memberID int64, board int) {
	if !cs.IsHealthy() {
		return
	}
	if err := cs.client.Del(ctx, treeKey(memberID, board)).Err(); err != nil {
		cs.recordFailure()
		return
	}
	cs.recordSuccess()
}

// InvalidateMember drops all of a member's board snapshots.
func (cs *CacheService) InvalidateMember(ctx context.Context, memberID int64, maxBoard int) {
	for board := 1; board <= maxBoard; board++ {
		cs.InvalidateTree(ctx, memberID, board)
	}
}

// Close releases the Redis connection.
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}
