package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	mintLockRedisPrefix = "mint:lock:"
	defaultMintLockTTL  = 2 * time.Minute
)

var (
	ErrMintInProgress = errors.New("a mint is already in progress for this wallet - wait for it to finish")

	// only the holder's token may delete the lock
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
)

// MintGuard lets one mint per wallet run at a time. The in-process map is
// always consulted; when a redis client is configured the lock is also taken
// there so several processes sharing a node wallet exclude each other.
type MintGuard struct {
	inFlight map[string]bool

	rdb *redis.Client
	ttl time.Duration
	mu  sync.Mutex
}

func NewMintGuard(rdb *redis.Client, ttl time.Duration) *MintGuard {
	if ttl <= 0 {
		ttl = defaultMintLockTTL
	}
	return &MintGuard{
		inFlight: make(map[string]bool),
		rdb:      rdb,
		ttl:      ttl,
	}
}

// Acquire takes the lock for key or fails with ErrMintInProgress. The
// returned release func is safe to call more than once.
func (g *MintGuard) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	if g.inFlight[key] {
		g.mu.Unlock()
		return nil, ErrMintInProgress
	}
	g.inFlight[key] = true
	g.mu.Unlock()

	var token string
	if g.rdb != nil {
		token = uuid.NewString()
		ok, err := g.rdb.SetNX(ctx, mintLockRedisPrefix+key, token, g.ttl).Result()
		if err != nil {
			g.forget(key)
			return nil, fmt.Errorf("failed to set mint lock in redis db key - %s - %w", mintLockRedisPrefix+key, err)
		}
		if !ok {
			g.forget(key)
			return nil, ErrMintInProgress
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if g.rdb != nil {
				err := releaseScript.Run(context.Background(), g.rdb, []string{mintLockRedisPrefix + key}, token).Err()
				if err != nil && err != redis.Nil {
					zap.L().Error("failed to release mint lock in redis db",
						zap.Error(err),
						zap.String("redis_key", mintLockRedisPrefix+key),
					)
				}
			}
			g.forget(key)
		})
	}, nil
}

// Busy reports whether a mint for key is running in this process.
func (g *MintGuard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[key]
}

func (g *MintGuard) forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}
