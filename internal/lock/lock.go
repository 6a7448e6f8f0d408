// Package lock grants exclusive mutation ownership of a campaign.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another owner holds the lock.
var ErrHeld = errors.New("campaign is locked by another operation")

// Locker hands out exclusive leases on keys.
type Locker interface {
	// Acquire returns a release func, or ErrHeld when the key is taken.
	Acquire(ctx context.Context, key string) (func(), error)
}

// Key is the lock key guarding a campaign.
func Key(campaignID string) string { return "campaign:" + campaignID }

// Redis leases keys with SET NX PX and a random token so only the owner
// releases. While held, the lease is extended every TTL/3 so long runs keep
// it; a crashed owner's lease lapses after at most TTL.
type Redis struct {
	Client redis.UniversalClient
	TTL    time.Duration
	Prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewRedis returns a Redis locker; ttl bounds how long a crashed owner blocks others.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{Client: client, TTL: ttl, Prefix: "lock:"}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.Prefix + key
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, full, token, r.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	renewCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renew(renewCtx, full, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
			// Release must run even when the caller's context is already done.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.Client, []string{full}, token).Err()
		})
	}, nil
}

// renew extends the lease until ctx ends or the token no longer owns key.
// A failed extension is retried on the next tick.
func (r *Redis) renew(ctx context.Context, key, token string) {
	if r.TTL <= 0 {
		return
	}
	interval := r.TTL / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := extendScript.Run(ctx, r.Client, []string{key}, token, r.TTL.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

// Local is an in-process Locker for single-node deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
