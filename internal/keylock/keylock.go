// Package keylock provides mutual exclusion scoped to a string key.
package keylock

import "sync"

// Locker hands out one mutex per key. Holders of different keys never wait on
// each other. Entries are reference counted and dropped when the last holder
// or waiter releases them.
type Locker struct {
	mu sync.Mutex
	m  map[string]*entry
}

// entry is the lock for one key plus the number of goroutines holding or waiting on it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{
		m: make(map[string]*entry),
	}
}

// Lock blocks until the lock for key is held and returns the function that releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.m, key)
			}
			l.mu.Unlock()
		})
	}
}

// Do runs fn while holding the lock for key.
func (l *Locker) Do(key string, fn func()) {
	unlock := l.Lock(key)
	defer unlock()
	fn()
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
