package platform

const (
	// GoHeapAllocationMultiplier accounts for Go runtime/GC overhead above
	// the raw byte count of buffered payloads when a Store's MaxBufferSize
	// is derived as a fraction of total RAM (see SetMaxBufferSizeFraction).
	// A buffer nominally sized to use half of RAM would, left unadjusted,
	// risk the process being OOM-killed once allocator and GC overhead are
	// included.
	GoHeapAllocationMultiplier = float64(2.0)
)
