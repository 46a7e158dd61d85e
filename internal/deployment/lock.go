package deployment

import "sync"

// LockManager serialises synchronisation attempts per checkout path.
//
// The outer mutex protects the map; each checkout has its own mutex, so
// different checkouts never wait on each other while overlapping deliveries for
// the same checkout run one after another instead of interleaving fetch/reset
// on a shared working tree.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (lm *LockManager) lockFor(key string) *sync.Mutex {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lock, exists := lm.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[key] = lock
	}
	return lock
}

// Lock blocks until the lock for key is held.
// Typically used as: lm.Lock(path); defer lm.Unlock(path)
func (lm *LockManager) Lock(key string) {
	lm.lockFor(key).Lock()
}

// Unlock releases the lock for key.
//
// It is safe to call this for a key that was never locked (no-op).
func (lm *LockManager) Unlock(key string) {
	lm.mu.Lock()
	lock := lm.locks[key]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
