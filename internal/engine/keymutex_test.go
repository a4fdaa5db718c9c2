package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	km := newKeyMutex()

	const workers = 8
	const iterations = 100

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := km.Lock("lkr-1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := newKeyMutex()

	unlockA := km.Lock("lkr-1")

	// A different key must not block behind lkr-1.
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("lkr-2")
		unlockB()
		close(done)
	}()

	<-done
	unlockA()
}

func TestKeyMutexReleasesEntries(t *testing.T) {
	km := newKeyMutex()

	unlock := km.Lock("lkr-1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks, "lock entries must be removed after the last release")
}
