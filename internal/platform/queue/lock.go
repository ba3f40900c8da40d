package queue

import (
	"context"
	"fmt"
	"time"
	"tle_arena/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete so a holder never releases a lock that expired and was re-taken.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock is a held Redis lock. Release is safe to call more than once.
type Lock struct {
	rdb   redis.Scripter
	key   string
	value string
}

func (l *Lock) Key() string { return l.key }

// Release deletes the key if this holder still owns it and reports whether it did.
func (l *Lock) Release(ctx context.Context) (bool, error) {
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.value).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return deleted == 1, nil
}

type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(rdb *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Acquire takes prefix+name with SET NX PX. It returns common.ErrLockNotAcquired
// when another holder owns the key.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := l.prefix + name
	value := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", key, common.ErrLockNotAcquired)
	}
	return &Lock{rdb: l.rdb, key: key, value: value}, nil
}
