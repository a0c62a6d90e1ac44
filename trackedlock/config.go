package trackedlock

import (
	"time"

	"objectarchive/conf"
	"objectarchive/logger"
)

func parseConfMap(confMap conf.ConfMap) (err error) {
	globals.lockHoldTimeLimit, err = confMap.FetchOptionValueDuration("TrackedLock", "LockHoldTimeLimit")
	if err != nil {
		globals.lockHoldTimeLimit = time.Duration(0)
	}

	// lockHoldTimeLimit must be >= 1 sec or 0
	if globals.lockHoldTimeLimit < time.Second && globals.lockHoldTimeLimit != 0 {
		logger.Warnf("config variable 'TrackedLock.LockHoldTimeLimit' value less than 1 sec; defaulting to '40s'")
		globals.lockHoldTimeLimit = 40 * time.Second
	}

	globals.lockCheckPeriod, err = confMap.FetchOptionValueDuration("TrackedLock", "LockCheckPeriod")
	if err != nil {
		globals.lockCheckPeriod = time.Duration(0)
	}

	// lockCheckPeriod must be >= 1 sec or 0
	if globals.lockCheckPeriod < time.Second && globals.lockCheckPeriod != 0 {
		logger.Warnf("config variable 'TrackedLock.LockCheckPeriod' value less than 1 sec; defaulting to '20s'")
		globals.lockCheckPeriod = 20 * time.Second
	}

	globals.lockWatcherLocksLogged = 16

	err = nil
	return
}

// Up initializes lock tracking from a confMap loaded by the conf package.
// Locks work (and are re-entrant, for Mutex) whether or not Up is ever
// called; Up only turns on hold-time warnings and the background watcher.
func Up(confMap conf.ConfMap) (err error) {
	err = parseConfMap(confMap)
	if err != nil {
		return
	}

	logger.Infof("trackedlock.Up(): LockHoldTimeLimit %d sec LockCheckPeriod %d sec",
		globals.lockHoldTimeLimit/time.Second, globals.lockCheckPeriod/time.Second)

	globals.mutexMap = make(map[*MutexTrack]interface{}, 32)
	globals.rwMutexMap = make(map[*RWMutexTrack]interface{}, 32)
	globals.stopChan = make(chan struct{})
	globals.doneChan = make(chan struct{})

	if globals.lockCheckPeriod == 0 || globals.lockHoldTimeLimit == 0 {
		return
	}

	globals.lockCheckTicker = time.NewTicker(globals.lockCheckPeriod)
	globals.lockCheckChan = globals.lockCheckTicker.C
	go lockWatcher()

	return
}

// Down stops the lock watcher started by Up, if any.
func Down() (err error) {
	if globals.lockCheckTicker != nil {
		globals.lockCheckTicker.Stop()
		globals.lockCheckTicker = nil
		globals.stopChan <- struct{}{}
		_ = <-globals.doneChan
	}
	return nil
}
