package engine

import "sync"

// keyMutex serializes operations per string key. Used to make
// read-then-write mutations of one locker (and its counterpart member)
// a single unit: competing scans and sweeps for the same locker queue
// behind each other instead of interleaving.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for the given key and returns the unlock
// function. Lock entries are reference counted and removed when the
// last holder releases, so the map does not grow with key cardinality.
func (k *keyMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
