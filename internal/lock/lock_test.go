package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerialisesSameDate(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithDateLock(ctx, "2025-06-10", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, l.held(), "entries are released once idle")
}

func TestLocalDifferentDatesDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithDateLock(ctx, "2025-06-10", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- l.WithDateLock(ctx, "2025-06-11", func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock on another date blocked")
	}
	close(release)
}

func TestLocalPropagatesErrorsAndCancellation(t *testing.T) {
	l := NewLocal()
	boom := errors.New("boom")

	err := l.WithDateLock(context.Background(), "2025-06-10", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = l.WithDateLock(ctx, "2025-06-10", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	date := "test-" + uuid.NewString()
	holder := NewRedis(client, 5*time.Second, 50*time.Millisecond)
	waiter := NewRedis(client, 5*time.Second, 50*time.Millisecond)

	err := holder.WithDateLock(context.Background(), date, func(ctx context.Context) error {
		return waiter.WithDateLock(ctx, date, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrNotAcquired)

	// released after the holder returns
	err = waiter.WithDateLock(context.Background(), date, func(context.Context) error { return nil })
	assert.NoError(t, err)
}
