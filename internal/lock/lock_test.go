package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, Key("c1"))
	require.NoError(t, err)

	_, err = l.Acquire(ctx, Key("c1"))
	require.ErrorIs(t, err, ErrHeld)

	other, err := l.Acquire(ctx, Key("c2"))
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(ctx, Key("c1"))
	require.NoError(t, err)
	again()
}

func TestLocalSingleWinnerUnderContention(t *testing.T) {
	l := NewLocal()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), "k"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestLocalCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Acquire(ctx, "k")
	require.True(t, errors.Is(err, context.Canceled))
}

func TestRedisLockIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	require.NoError(t, err)
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	first := NewRedis(client, time.Minute)
	second := NewRedis(client, time.Minute)

	release, err := first.Acquire(ctx, Key("c1"))
	require.NoError(t, err)
	_, err = second.Acquire(ctx, Key("c1"))
	require.ErrorIs(t, err, ErrHeld)

	release()
	release2, err := second.Acquire(ctx, Key("c1"))
	require.NoError(t, err)

	// A stale release from the first owner must not drop the second owner's lease.
	release()
	_, err = first.Acquire(ctx, Key("c1"))
	require.ErrorIs(t, err, ErrHeld)
	release2()

	// A holder outliving the TTL keeps the lease until it releases.
	short := NewRedis(client, 300*time.Millisecond)
	release3, err := short.Acquire(ctx, Key("c2"))
	require.NoError(t, err)
	time.Sleep(time.Second)
	_, err = second.Acquire(ctx, Key("c2"))
	require.ErrorIs(t, err, ErrHeld)
	ttl, err := client.PTTL(ctx, "lock:"+Key("c2")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	release3()
	exists, err := client.Exists(ctx, "lock:"+Key("c2")).Result()
	require.NoError(t, err)
	require.Zero(t, exists)

	// Once the holder stops renewing, the lease lapses on its own.
	require.NoError(t, client.Set(ctx, "lock:"+Key("c3"), "crashed-owner", 300*time.Millisecond).Err())
	require.Eventually(t, func() bool {
		rel, err := second.Acquire(ctx, Key("c3"))
		if err != nil {
			return false
		}
		rel()
		return true
	}, 3*time.Second, 50*time.Millisecond)
}

// scriptCalls counts EVAL and EVALSHA commands.
type scriptCalls struct {
	n atomic.Int64
}

func (h *scriptCalls) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptCalls) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if name := cmd.Name(); name == "evalsha" || name == "eval" {
			h.n.Add(1)
		}
		return next(ctx, cmd)
	}
}

func (h *scriptCalls) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisReleaseStopsRenewal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	require.NoError(t, err)
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()
	calls := &scriptCalls{}
	client.AddHook(calls)

	l := NewRedis(client, 90*time.Millisecond)
	release, err := l.Acquire(ctx, Key("c1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.n.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	release()
	release()
	after := calls.n.Load()
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, after, calls.n.Load())

	exists, err := client.Exists(ctx, "lock:"+Key("c1")).Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}
