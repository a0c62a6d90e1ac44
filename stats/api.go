// Package stats provides a simple statsd client API for a Store/Overlay
// pair. Counters are folded in batches and flushed on a timer by sender(),
// so incrementing a stat never blocks the caller on network I/O.
package stats

// MultipleStat identifies one of the Store operations that reports both
// an operation count and a payload-size distribution.
type MultipleStat int

const (
	StoreInsert MultipleStat = iota // uses operations, size-bucketed ops, and bytes stats
	StoreLoad                       // uses operations, size-bucketed ops, and bytes stats
	StoreFlush                      // uses operations, entries, and bytes stats
)

// Dump returns a map of all accumulated stats since process start.
//
//   Key   is a string containing the name of the stat
//   Value is the accumulation of all increments for the stat since process start
func Dump() (statMap map[string]uint64) {
	statMap = dump()
	return
}

// IncrementOperations sends an increment of .operations to statsd.
func IncrementOperations(statName *string) {
	// Do this in a goroutine since channel operations are surprisingly expensive due to locking underneath
	go incrementOperations(statName)
}

// IncrementOperationsAndBytes sends an increment of .operations and .bytes to statsd.
func IncrementOperationsAndBytes(stat MultipleStat, bytes uint64) {
	go incrementOperationsAndBytes(stat, bytes)
}

// IncrementOperationsEntriesAndBytes sends an increment of .operations, .entries, and .bytes to statsd.
// Used by StoreFlush, where entries is the number of Entrys rewritten during a rebuild.
func IncrementOperationsEntriesAndBytes(stat MultipleStat, entries uint64, bytes uint64) {
	go incrementOperationsEntriesAndBytes(stat, entries, bytes)
}

// IncrementOperationsAndBucketedBytes sends an increment of .operations, .bytes, and the
// appropriate .operations.size-* to statsd. Used by StoreInsert and StoreLoad to track the
// payload-size distribution flowing through the buffer.
func IncrementOperationsAndBucketedBytes(stat MultipleStat, bytes uint64) {
	go incrementOperationsAndBucketedBytes(stat, bytes)
}
