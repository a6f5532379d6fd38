package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "round-0")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLocalExclusive(t *testing.T) {
	exercise(t, NewLocal())
}

func TestLocalContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()

	assert.Empty(t, l.locks)
}

func TestRedisExclusive(t *testing.T) {
	addr := os.Getenv("PRESALED_TEST_REDIS")
	if addr == "" {
		t.Skip("PRESALED_TEST_REDIS not set")
	}
	l, err := New(Config{Backend: BackendRedis, RedisAddr: addr})
	require.NoError(t, err)
	exercise(t, l)
}

func TestUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "zookeeper"})
	assert.Error(t, err)
}
