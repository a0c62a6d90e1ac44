package trackedlock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"objectarchive/logger"
)

type globalsStruct struct {
	mapMutex               sync.Mutex                    // protects mutexMap and rwMutexMap
	mutexMap               map[*MutexTrack]interface{}   // the Mutex-like locks being watched
	rwMutexMap             map[*RWMutexTrack]interface{} // the RWMutex-like locks being watched
	lockHoldTimeLimit      time.Duration                 // locks held longer than this get logged
	lockCheckPeriod        time.Duration                 // check locks once each period
	lockWatcherLocksLogged int                           // max overlimit locks logged per lockWatcher() pass
	lockCheckChan          <-chan time.Time              // wait here to check on locks
	stopChan               chan struct{}                 // time to shut down
	doneChan               chan struct{}                 // shutdown complete
	lockCheckTicker        *time.Ticker                  // ticker for lock check period
}

var globals globalsStruct

// MutexTrack implements a re-entrant exclusive lock plus hold-time
// tracking. owner/count are read and written only while guard is held;
// mu is the actual mutual-exclusion primitive blocking other goroutines.
type MutexTrack struct {
	mu        sync.Mutex
	guard     sync.Mutex
	owner     uint64
	count     int
	lockTime  time.Time
	isWatched bool
}

func (mt *MutexTrack) lockTrack(wrappedLock interface{}, gid uint64) {
	mt.guard.Lock()
	if mt.count > 0 && mt.owner == gid {
		mt.count++
		mt.guard.Unlock()
		return
	}
	mt.guard.Unlock()

	mt.mu.Lock()

	mt.guard.Lock()
	mt.owner = gid
	mt.count = 1
	mt.lockTime = time.Now()
	if !mt.isWatched && globals.lockCheckPeriod != 0 && globals.lockHoldTimeLimit != 0 {
		globals.mapMutex.Lock()
		globals.mutexMap[mt] = wrappedLock
		globals.mapMutex.Unlock()
		mt.isWatched = true
	}
	mt.guard.Unlock()
}

func (mt *MutexTrack) unlockTrack(wrappedLock interface{}, gid uint64) {
	mt.guard.Lock()
	if mt.count == 0 || mt.owner != gid {
		mt.guard.Unlock()
		logger.PanicfWithError(fmt.Errorf("unlock of unheld or not-owned lock"), "%T at %p Unlock() by goroutine %v, owner %v count %v", wrappedLock, wrappedLock, gid, mt.owner, mt.count)
		return
	}

	mt.count--
	if mt.count > 0 {
		mt.guard.Unlock()
		return
	}

	held := time.Since(mt.lockTime)
	mt.owner = 0
	mt.guard.Unlock()

	if globals.lockHoldTimeLimit != 0 && held >= globals.lockHoldTimeLimit {
		logger.Warnf("Unlock(): %T at %p held for %f sec, exceeding TrackedLock.LockHoldTimeLimit", wrappedLock, wrappedLock, held.Seconds())
	}

	mt.mu.Unlock()
}

// RWMutexTrack wraps sync.RWMutex with hold-time tracking. It is not
// re-entrant.
type RWMutexTrack struct {
	mu          sync.RWMutex
	guard       sync.Mutex
	lockTime    time.Time // set when locked exclusive, or when the first reader locks shared
	lockedExcl  bool
	sharedCount int32
	isWatched   bool
}

func (rwmt *RWMutexTrack) lockTrack(wrappedLock interface{}) {
	rwmt.mu.Lock()

	rwmt.guard.Lock()
	rwmt.lockedExcl = true
	rwmt.lockTime = time.Now()
	rwmt.watch(wrappedLock)
	rwmt.guard.Unlock()
}

func (rwmt *RWMutexTrack) unlockTrack(wrappedLock interface{}) {
	rwmt.guard.Lock()
	held := time.Since(rwmt.lockTime)
	rwmt.lockedExcl = false
	rwmt.guard.Unlock()

	if globals.lockHoldTimeLimit != 0 && held >= globals.lockHoldTimeLimit {
		logger.Warnf("Unlock(): %T at %p held exclusive for %f sec, exceeding TrackedLock.LockHoldTimeLimit", wrappedLock, wrappedLock, held.Seconds())
	}

	rwmt.mu.Unlock()
}

func (rwmt *RWMutexTrack) rLockTrack(wrappedLock interface{}) {
	rwmt.mu.RLock()

	rwmt.guard.Lock()
	if atomic.AddInt32(&rwmt.sharedCount, 1) == 1 {
		rwmt.lockTime = time.Now()
	}
	rwmt.watch(wrappedLock)
	rwmt.guard.Unlock()
}

func (rwmt *RWMutexTrack) rUnlockTrack(wrappedLock interface{}) {
	rwmt.guard.Lock()
	held := time.Since(rwmt.lockTime)
	atomic.AddInt32(&rwmt.sharedCount, -1)
	rwmt.guard.Unlock()

	if globals.lockHoldTimeLimit != 0 && held >= globals.lockHoldTimeLimit {
		logger.Warnf("RUnlock(): %T at %p held shared for %f sec, exceeding TrackedLock.LockHoldTimeLimit", wrappedLock, wrappedLock, held.Seconds())
	}

	rwmt.mu.RUnlock()
}

// watch registers rwmt with the lock watcher the first time it is locked,
// assuming the watcher is enabled. Caller holds rwmt.guard.
func (rwmt *RWMutexTrack) watch(wrappedLock interface{}) {
	if !rwmt.isWatched && globals.lockCheckPeriod != 0 && globals.lockHoldTimeLimit != 0 {
		globals.mapMutex.Lock()
		globals.rwMutexMap[rwmt] = wrappedLock
		globals.mapMutex.Unlock()
		rwmt.isWatched = true
	}
}

// Periodically check for locks that have been held too long.
func lockWatcher() {
	for shutdown := false; !shutdown; {
		select {
		case <-globals.stopChan:
			shutdown = true
			logger.Infof("trackedlock lock watcher shutting down")
		case <-globals.lockCheckChan:
		}

		now := time.Now()

		globals.mapMutex.Lock()
		for mt, lockPtr := range globals.mutexMap {
			mt.guard.Lock()
			locked := mt.count > 0
			lockTime := mt.lockTime
			mt.guard.Unlock()

			if !locked {
				if now.Sub(lockTime) >= globals.lockCheckPeriod {
					mt.isWatched = false
					delete(globals.mutexMap, mt)
				}
				continue
			}

			held := now.Sub(lockTime)
			if held >= globals.lockHoldTimeLimit {
				logger.Warnf("trackedlock watcher: %T at %p locked for %f sec", lockPtr, lockPtr, held.Seconds())
			}
		}

		for rwmt, lockPtr := range globals.rwMutexMap {
			rwmt.guard.Lock()
			locked := rwmt.lockedExcl || atomic.LoadInt32(&rwmt.sharedCount) > 0
			lockTime := rwmt.lockTime
			rwmt.guard.Unlock()

			if !locked {
				if now.Sub(lockTime) >= globals.lockCheckPeriod {
					rwmt.isWatched = false
					delete(globals.rwMutexMap, rwmt)
				}
				continue
			}

			held := now.Sub(lockTime)
			if held >= globals.lockHoldTimeLimit {
				logger.Warnf("trackedlock watcher: %T at %p locked for %f sec", lockPtr, lockPtr, held.Seconds())
			}
		}
		globals.mapMutex.Unlock()
	}

	globals.doneChan <- struct{}{}
}
