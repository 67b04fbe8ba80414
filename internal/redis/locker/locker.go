// Package locker hands out short-lived exclusive leases keyed by string. The Redis
// implementation coordinates several service instances; Local covers a single process.
package locker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"auctioncore/internal/redis/redis_functions"
)

type Locker interface {
	// TryAcquire does not wait. ok is false when someone else holds key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (lease *Lease, ok bool, err error)
}

type Lease struct {
	Key     string
	release func(ctx context.Context) error
}

// Release gives the lease back before its TTL runs out. Releasing a lease that
// already expired and was taken by another holder is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	return l.release(ctx)
}

type Redis struct {
	rdc      *redis.Client
	newToken func() string
}

var _ Locker = (*Redis)(nil)

func NewRedis(rdc *redis.Client) *Redis {
	return &Redis{rdc: rdc, newToken: uuid.NewString}
}

func (r *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	token := r.newToken()
	ok, err := r.rdc.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{
		Key: key,
		release: func(ctx context.Context) error {
			return r.rdc.FCall(ctx, redis_functions.LockRelease, []string{key}, token).Err()
		},
	}, true, nil
}

type Local struct {
	mu   sync.Mutex
	held map[string]localHold
	now  func() time.Time
	seq  uint64
}

type localHold struct {
	seq     uint64
	expires time.Time
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{held: make(map[string]localHold), now: time.Now}
}

func (l *Local) TryAcquire(_ context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}
	l.seq++
	seq := l.seq
	l.held[key] = localHold{seq: seq, expires: now.Add(ttl)}

	return &Lease{
		Key: key,
		release: func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if h, ok := l.held[key]; ok && h.seq == seq {
				delete(l.held, key)
			}
			return nil
		},
	}, true, nil
}
