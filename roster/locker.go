package roster

import "sync"

// matchLocks serializes roster mutations per match inside this process.
type matchLocks struct {
	mu    sync.Mutex
	locks map[uint]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[uint]*matchLock)}
}

// lock blocks until matchID is free and returns the unlock func.
func (l *matchLocks) lock(matchID uint) func() {
	l.mu.Lock()
	ml := l.locks[matchID]
	if ml == nil {
		ml = &matchLock{}
		l.locks[matchID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()
	return func() {
		ml.mu.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, matchID)
		}
		l.mu.Unlock()
	}
}
