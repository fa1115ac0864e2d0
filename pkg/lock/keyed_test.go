package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_MutualExclusion(t *testing.T) {
	km := NewKeyedMutex()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
		counter int
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := km.Lock(context.Background(), "c1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			counter++
			inside.Add(-1)
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, km.size())
}

func TestKeyedMutex_Timeout(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.Lock(ctx, "c1")
	assert.True(t, errors.Is(err, ErrNotAcquired))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock() // second call is a no-op
	assert.Zero(t, km.size())

	unlock, err = km.Lock(context.Background(), "c1")
	require.NoError(t, err)
	unlock()
}

func TestKeyedMutex_DifferentKeysDontWait(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "c1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlock2, err := km.Lock(ctx, "c2")
	require.NoError(t, err)
	unlock2()

	assert.Equal(t, 1, km.size())
}
