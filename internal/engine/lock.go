package engine

import (
	"sync"

	"simpleamm/internal/registry"
)

type poolLock struct {
	holders int
	mu      sync.Mutex
}

// lockMap hands out one mutex per pool and drops it once no goroutine holds
// or waits on it.
type lockMap struct {
	mu sync.Mutex
	m  map[registry.Key]*poolLock
}

func newLockMap() *lockMap {
	return &lockMap{m: make(map[registry.Key]*poolLock)}
}

func (l *lockMap) Lock(key registry.Key) {
	l.mu.Lock()
	pl, ok := l.m[key]
	if !ok {
		pl = &poolLock{}
		l.m[key] = pl
	}
	pl.holders++
	l.mu.Unlock()

	pl.mu.Lock()
}

func (l *lockMap) Unlock(key registry.Key) {
	l.mu.Lock()
	pl := l.m[key]
	pl.holders--
	if pl.holders == 0 {
		delete(l.m, key)
	}
	l.mu.Unlock()

	pl.mu.Unlock()
}

// Len returns the number of pools currently locked or awaited.
func (l *lockMap) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
