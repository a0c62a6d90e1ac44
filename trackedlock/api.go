// Package trackedlock provides Mutex and RWMutex types used by the store
// and overlay packages. Mutex is re-entrant: the goroutine already holding
// it may call Lock() again (this happens routinely, since Store's exported
// methods call each other while the lock is held) and nothing deadlocks as
// long as every extra Lock() is matched by an Unlock().
//
// Both types also track how long they were held and, if tracking is
// enabled via Up(), warn when a lock is held longer than
// TrackedLock.LockHoldTimeLimit, plus run a background watcher that
// periodically checks for locks that are currently stuck.
package trackedlock

import (
	"objectarchive/utils"
)

// Mutex is a re-entrant exclusive lock. The zero value is ready to use.
type Mutex struct {
	tracker MutexTrack
}

// Lock acquires m. If the calling goroutine already holds m, Lock
// increments the hold count and returns immediately instead of
// deadlocking.
func (m *Mutex) Lock() {
	m.tracker.lockTrack(m, utils.GetGID())
}

// Unlock releases one level of m's hold count, actually unlocking it once
// the count reaches zero. Unlock panics if the calling goroutine does not
// hold m.
func (m *Mutex) Unlock() {
	m.tracker.unlockTrack(m, utils.GetGID())
}

// RWMutex wraps sync.RWMutex with hold-time tracking. Unlike Mutex, it is
// not re-entrant: a goroutine that calls Lock() or RLock() twice without an
// intervening Unlock()/RUnlock() will deadlock, exactly as sync.RWMutex
// would.
type RWMutex struct {
	rwTracker RWMutexTrack
}

func (m *RWMutex) Lock() {
	m.rwTracker.lockTrack(m)
}

func (m *RWMutex) Unlock() {
	m.rwTracker.unlockTrack(m)
}

func (m *RWMutex) RLock() {
	m.rwTracker.rLockTrack(m)
}

func (m *RWMutex) RUnlock() {
	m.rwTracker.rUnlockTrack(m)
}
