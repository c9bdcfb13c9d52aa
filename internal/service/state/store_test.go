package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("memory default", func(t *testing.T) {
		s, err := New(Config{})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "memory", s.Name())
	})

	t.Run("redis without addresses", func(t *testing.T) {
		_, err := New(Config{Type: "redis"})
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(Config{Type: "etcd"})
		assert.ErrorIs(t, err, ErrUnknownStoreType)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, DefaultKeyPrefix, cfg.Redis.KeyPrefix)
}

func TestMemoryStore_Consume(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	require.NoError(t, s.Consume(ctx, "a", exp))
	assert.Equal(t, ErrNonceReused, s.Consume(ctx, "a", exp))
	require.NoError(t, s.Consume(ctx, "b", exp))
}

func TestMemoryStore_ExpiredEntriesAreReusable(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Consume(context.Background(), "a", now.Add(time.Second)))

	now = now.Add(2 * time.Second)
	s.purge()
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Consume(context.Background(), "a", now.Add(time.Second)))
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume(context.Background(), "same", time.Now().Add(time.Minute)) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
