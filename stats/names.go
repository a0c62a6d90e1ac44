package stats

// Stat names sent to statsd. Kept as vars (not consts) because
// IncrementOperations et al pass around *string to avoid a map lookup
// (and allocation) on every call.
var (
	StoreInsertOps         = "store.insert.operations"
	StoreInsertBytes       = "store.insert.bytes"
	StoreInsertOps4K       = "store.insert.operations.size-4K"
	StoreInsertOps16K      = "store.insert.operations.size-16K"
	StoreInsertOps64K      = "store.insert.operations.size-64K"
	StoreInsertOps256K     = "store.insert.operations.size-256K"
	StoreInsertOpsOver256K = "store.insert.operations.size-over-256K"

	StoreLoadOps         = "store.load.operations"
	StoreLoadBytes       = "store.load.bytes"
	StoreLoadOps4K       = "store.load.operations.size-4K"
	StoreLoadOps16K      = "store.load.operations.size-16K"
	StoreLoadOps64K      = "store.load.operations.size-64K"
	StoreLoadOps256K     = "store.load.operations.size-256K"
	StoreLoadOpsOver256K = "store.load.operations.size-over-256K"

	StoreFlushOps     = "store.flush.operations"
	StoreFlushBytes   = "store.flush.bytes"
	StoreFlushEntries = "store.flush.entries"

	StoreRemoveOps    = "store.remove.operations"
	StoreRenameOps    = "store.rename.operations"
	StoreUnloadOps    = "store.unload.operations"
	StoreEvictOps     = "store.evict.operations"
	StoreLoadHitOps   = "store.load.hits"
	StoreLoadMissOps  = "store.load.misses"

	OverlayAliveSentOps       = "overlay.alive.sent"
	OverlayInsertedSentOps    = "overlay.inserted.sent"
	OverlayInvalidatedSentOps = "overlay.invalidated.sent"
	OverlayRequestSentOps     = "overlay.request.sent"
	OverlayResponseSentOps    = "overlay.response.sent"
	OverlayFetchHitOps        = "overlay.fetch.hits"
	OverlayFetchMissOps       = "overlay.fetch.misses"
	OverlayPeerDeathOps       = "overlay.peer.deaths"
)
