// File: internal/alerting/pairlock.go
package alerting

import (
	"sync"
)

type pairKey struct {
	targetID int64
	ruleID   int64
}

// LockTable serializes lifecycle evaluation per (target, rule) pair so
// concurrent observations cannot race the read-check-write and open
// duplicate active alerts. Locks are created on demand and retained; the
// table is bounded by the number of configured pairs.
type LockTable struct {
	mu    sync.Mutex
	locks map[pairKey]*sync.Mutex
}

// NewLockTable creates an empty lock table
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[pairKey]*sync.Mutex)}
}

// Lock acquires the mutex for the pair and returns its unlock function
func (lt *LockTable) Lock(targetID, ruleID int64) func() {
	key := pairKey{targetID: targetID, ruleID: ruleID}

	lt.mu.Lock()
	lock, ok := lt.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		lt.locks[key] = lock
	}
	lt.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
