package stats

import (
	"sync"
)

func (ms MultipleStat) findStatStrings(numBytes uint64) (ops *string, bytes *string, entries *string, bbytes *string) {
	switch ms {
	case StoreInsert:
		ops = &StoreInsertOps
		bytes = &StoreInsertBytes
		bbytes = bucketedBytesStatName(numBytes, StoreInsertOps4K, StoreInsertOps16K, StoreInsertOps64K, StoreInsertOps256K, StoreInsertOpsOver256K)
	case StoreLoad:
		ops = &StoreLoadOps
		bytes = &StoreLoadBytes
		bbytes = bucketedBytesStatName(numBytes, StoreLoadOps4K, StoreLoadOps16K, StoreLoadOps64K, StoreLoadOps256K, StoreLoadOpsOver256K)
	case StoreFlush:
		ops = &StoreFlushOps
		bytes = &StoreFlushBytes
		entries = &StoreFlushEntries
	}
	return
}

func bucketedBytesStatName(numBytes uint64, to4K, to16K, to64K, to256K, over256K string) *string {
	switch {
	case numBytes <= 4096:
		return &to4K
	case numBytes <= 16384:
		return &to16K
	case numBytes <= 65536:
		return &to64K
	case numBytes <= 262144:
		return &to256K
	default:
		return &over256K
	}
}

func dump() (statMap map[string]uint64) {
	globals.Lock()
	numStats := len(globals.statFullMap)
	statMap = make(map[string]uint64, numStats)
	for statKey, statValue := range globals.statFullMap {
		statMap[statKey] = statValue
	}
	globals.Unlock()
	return
}

var statStructPool sync.Pool = sync.Pool{
	New: func() interface{} {
		return &statStruct{}
	},
}

func incrementSomething(statName *string, incBy uint64) {
	if statName == nil || incBy == 0 {
		return
	}

	// if stats are not enabled yet, just ignore (reduce a window while
	// stats are shutting down by saving the channel to a local variable)
	statChan := globals.statChan
	if statChan == nil {
		return
	}

	stat := statStructPool.Get().(*statStruct)
	stat.name = statName
	stat.increment = incBy
	statChan <- stat
}

func incrementOperations(statName *string) {
	incrementSomething(statName, 1)
}

func incrementOperationsAndBytes(stat MultipleStat, bytes uint64) {
	opsStat, bytesStat, _, _ := stat.findStatStrings(bytes)
	incrementSomething(opsStat, 1)
	incrementSomething(bytesStat, bytes)
}

func incrementOperationsEntriesAndBytes(stat MultipleStat, entries uint64, bytes uint64) {
	opsStat, bytesStat, entriesStat, _ := stat.findStatStrings(bytes)
	incrementSomething(opsStat, 1)
	incrementSomething(entriesStat, entries)
	incrementSomething(bytesStat, bytes)
}

func incrementOperationsAndBucketedBytes(stat MultipleStat, bytes uint64) {
	opsStat, bytesStat, _, bbytesStat := stat.findStatStrings(bytes)
	incrementSomething(opsStat, 1)
	incrementSomething(bytesStat, bytes)
	incrementSomething(bbytesStat, 1)
}
