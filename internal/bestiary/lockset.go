package bestiary

import (
	"sort"
	"sync"
)

// lockSet serializes writers per creature id. Per-id operations share the
// bulk lock for reading; operations touching an unknown set of ids (type
// boosts) take it exclusively. Multiple ids are always locked in ascending
// order so two battles over the same pair cannot deadlock.
type lockSet struct {
	bulk sync.RWMutex

	mu  sync.Mutex
	ids map[int32]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{ids: make(map[int32]*idLock)}
}

// lock acquires the per-id locks for ids and returns the matching unlock.
func (l *lockSet) lock(ids ...int32) (unlock func()) {
	sorted := make([]int32, 0, len(ids))
	seen := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	l.bulk.RLock()
	held := make([]*idLock, 0, len(sorted))
	for _, id := range sorted {
		il := l.acquire(id)
		il.mu.Lock()
		held = append(held, il)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(sorted[i])
		}
		l.bulk.RUnlock()
	}
}

// lockAll excludes every per-id operation until unlock is called.
func (l *lockSet) lockAll() (unlock func()) {
	l.bulk.Lock()
	return l.bulk.Unlock
}

func (l *lockSet) acquire(id int32) *idLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.ids[id]
	if !ok {
		il = &idLock{}
		l.ids[id] = il
	}
	il.refs++
	return il
}

func (l *lockSet) release(id int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	il := l.ids[id]
	if il.refs--; il.refs == 0 {
		delete(l.ids, id)
	}
}
