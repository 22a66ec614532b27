package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/utils"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix namespaces lock keys in a shared redis
	DefaultRedisKeyPrefix = "lattice:leadership:"

	// DefaultRedisRetryInterval is how often a waiting contestant polls
	DefaultRedisRetryInterval = 100 * time.Millisecond
)

// extendScript renews the lease only for the token that owns it.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// unlockScript deletes the lease only for the token that owns it.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockOptions tunes a RedisLockService.
type RedisLockOptions struct {
	KeyPrefix     string
	RetryInterval time.Duration
}

// RedisLockService implements LockService on a redis server shared by every
// node. A lease is a key holding a random token with a PX expiry; terms come
// from a per-path counter incremented on every acquisition.
type RedisLockService struct {
	client        goredis.UniversalClient
	prefix        string
	retryInterval time.Duration
}

// NewRedisLockService wraps an existing client.
func NewRedisLockService(client goredis.UniversalClient, opts RedisLockOptions) *RedisLockService {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultRedisKeyPrefix
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRedisRetryInterval
	}
	return &RedisLockService{
		client:        client,
		prefix:        opts.KeyPrefix,
		retryInterval: opts.RetryInterval,
	}
}

// redisLogger routes go-redis client logs through the lattice logger
type redisLogger struct{}

func (redisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	logging.Warn("redis: "+format, v...)
}

// DialRedis connects to the redis server at addr and checks it responds.
func DialRedis(ctx context.Context, addr string) (goredis.UniversalClient, error) {
	goredis.SetLogger(redisLogger{})
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return client, nil
}

// Create implements LockService.
func (s *RedisLockService) Create(path string) Lock {
	return &redisLock{
		service: s,
		path:    path,
		key:     s.prefix + path,
		termKey: s.prefix + path + ":term",
	}
}

type redisLock struct {
	service *RedisLockService
	path    string
	key     string
	termKey string

	mu      sync.Mutex
	token   string
	term    uint64
	expires time.Time
}

func (l *redisLock) Path() string {
	return l.path
}

func (l *redisLock) LockAsync(ctx context.Context, ttl time.Duration) <-chan LockResult {
	ch := make(chan LockResult, 1)
	go func() {
		token, err := utils.GenerateID()
		if err != nil {
			resolve(ch, 0, fmt.Errorf("failed to generate lock token: %w", err))
			return
		}

		ticker := time.NewTicker(l.service.retryInterval)
		defer ticker.Stop()

		for {
			term, acquired, err := l.tryAcquire(ctx, token, ttl)
			if err != nil {
				resolve(ch, 0, err)
				return
			}
			if acquired {
				resolve(ch, term, nil)
				return
			}

			select {
			case <-ctx.Done():
				resolve(ch, 0, ctx.Err())
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}

func (l *redisLock) tryAcquire(ctx context.Context, token string, ttl time.Duration) (uint64, bool, error) {
	client := l.service.client

	start := time.Now()
	ok, err := client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("lock %s setnx: %w", l.path, err)
	}
	if !ok {
		return 0, false, nil
	}

	term, err := client.Incr(ctx, l.termKey).Result()
	if err != nil {
		// Without a term the lease is useless; give it back
		if _, uerr := unlockScript.Run(context.Background(), client, []string{l.key}, token).Result(); uerr != nil {
			logging.Warn("Failed to release lock %s after term error: %v", l.path, uerr)
		}
		return 0, false, fmt.Errorf("lock %s term: %w", l.path, err)
	}

	l.mu.Lock()
	l.token = token
	l.term = uint64(term)
	l.expires = start.Add(ttl)
	l.mu.Unlock()
	return uint64(term), true, nil
}

func (l *redisLock) ExtendExpiration(ctx context.Context, ttl time.Duration) bool {
	l.mu.Lock()
	token := l.token
	l.mu.Unlock()
	if token == "" {
		return false
	}

	start := time.Now()
	n, err := extendScript.Run(ctx, l.service.client, []string{l.key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		logging.Warn("Failed to extend lock %s: %v", l.path, err)
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if n != 1 {
		l.clearLocked(token)
		return false
	}
	if l.token == token {
		l.expires = start.Add(ttl)
	}
	return true
}

func (l *redisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.clearLocked(token)
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	_, err := unlockScript.Run(ctx, l.service.client, []string{l.key}, token).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("lock %s unlock: %w", l.path, err)
	}
	return nil
}

// clearLocked forgets the lease if it is still the one identified by token.
func (l *redisLock) clearLocked(token string) {
	if l.token == token {
		l.token = ""
		l.expires = time.Time{}
	}
}

func (l *redisLock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token != "" && time.Now().Before(l.expires)
}

func (l *redisLock) Term() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.term
}
