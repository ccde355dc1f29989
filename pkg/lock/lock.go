package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"smallbiznis-reputation/pkg/rediskey"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrHeld is returned by TryLock when another holder owns the key.
var ErrHeld = errors.New("lock: already held")

// Locker is a non-reentrant, TTL-bounded mutual exclusion primitive.
// The TTL bounds how long a crashed holder can keep the key.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

var Module = fx.Module("lock", fx.Provide(NewRedisLocker))

type redisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{rdb: rdb}
}

// Deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := rediskey.BuildLockKey(name)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	return func() {
		// The caller's context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			zap.L().Warn("[Lock] failed to release", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker returns an in-process Locker for single-instance runs and tests.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]time.Time)}
}

func (l *localLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.held[name]; ok && now.Before(exp) {
		return nil, ErrHeld
	}

	exp := now.Add(ttl)
	l.held[name] = exp
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[name] == exp {
			delete(l.held, name)
		}
	}, nil
}
