package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	locks := NewKeyedMutex()

	var mu sync.Mutex
	var inside int
	var maxInside int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("student:S1:2026-03-10")
			defer release()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}

func TestKeyedMutexOverlappingKeySetsDoNotDeadlock(t *testing.T) {
	locks := NewKeyedMutex()

	// Two goroutines take the same two keys in opposite order; sorted
	// acquisition makes this safe.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release := locks.Lock("a", "b")
			release()
		}()
		go func() {
			defer wg.Done()
			release := locks.Lock("b", "a")
			release()
		}()
	}
	wg.Wait()
}

func TestKeyedMutexDuplicateKeysAcquireOnce(t *testing.T) {
	locks := NewKeyedMutex()

	release := locks.Lock("x", "x", "x")
	release()

	// Entries are reclaimed once released.
	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}

func TestKeyedMutexReleaseIsIdempotent(t *testing.T) {
	locks := NewKeyedMutex()

	release := locks.Lock("x")
	release()
	require.NotPanics(t, release)

	// The key is free again.
	release = locks.Lock("x")
	release()
}
