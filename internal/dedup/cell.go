package dedup

import (
	"fmt"
	"sync"
)

// CellKey buckets a coordinate into a coarse geocell. Three decimal places is
// about 110 m of latitude, matching the default dedup radius.
func CellKey(lat, lng float64) string {
	return fmt.Sprintf("%.3f:%.3f", lat, lng)
}

// CellLock serializes issue intake per geocell so two near-simultaneous
// submissions for the same spot cannot both pass the gate before either is
// persisted. Entries are reference-counted and removed once idle, so the map
// does not grow with the coordinate space.
type CellLock struct {
	mu    sync.Mutex
	cells map[string]*cellEntry
}

type cellEntry struct {
	sem  chan struct{}
	refs int
}

func NewCellLock() *CellLock {
	return &CellLock{cells: map[string]*cellEntry{}}
}

// Lock blocks until the cell is free and returns the release function. The
// release is idempotent and must be called on every exit path.
func (l *CellLock) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.cells[key]
	if !ok {
		e = &cellEntry{sem: make(chan struct{}, 1)}
		l.cells[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.sem <- struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.cells, key)
			}
			l.mu.Unlock()
		})
	}
}
