// Package dispatch defines the tagged-message inbox contract the overlay
// package depends on for peer-to-peer communication, plus a reference,
// in-process implementation used by this module's own tests.
//
// The contract intentionally mirrors an MPI-style non-blocking message
// substrate: Probe/Recv for blocking-style consumption, ISend/WaitAll for
// non-blocking sends with bulk completion, and IRecv(...).Test() for a
// pollable non-blocking receive that can be Cancel()ed. The overlay's
// "pump loop" (drain the dispatcher while waiting on a specific receive)
// is built entirely out of these five operations.
package dispatch

// Rank identifies one peer. AnyRank may be used as the source argument
// to Recv/IRecv to match a message from any peer.
type Rank int

// AnyRank matches a message from any source.
const AnyRank Rank = -1

// Tag identifies a message kind on the transport. The overlay package
// assigns one Tag per entry in its message vocabulary (Alive, Invalidated,
// Inserted, ChangeKey, Request, Response, RequestData, ResponseData);
// tag numbers are caller-configurable and must be pairwise distinct.
type Tag int

// Handler is invoked by Drain() for every message pulled out of the
// inbox, in place of a direct Recv() call.
type Handler func(source Rank, tag Tag, payload []byte)

// SendRequest is an opaque handle to a posted non-blocking send,
// completed by WaitAll.
type SendRequest interface{}

// RecvRequest is a posted non-blocking receive. Test never blocks; Done
// becomes true once a matching message has arrived.
type RecvRequest interface {
	// Test reports whether the receive has completed. source is the
	// rank the message actually arrived from (useful when the request
	// was posted with AnyRank).
	Test() (done bool, source Rank, payload []byte, err error)
}

// Dispatcher is the tagged inbox the overlay package drains. Self
// identifies which peer this Dispatcher instance belongs to.
type Dispatcher interface {
	Self() Rank

	// Register installs handler as the tag's handler for Drain().
	Register(tag Tag, handler Handler)

	// Probe reports whether a message is queued, without consuming it.
	Probe() (source Rank, tag Tag, ok bool)

	// Recv blocks until a message matching (source, tag) is available,
	// consumes it, and returns its payload.
	Recv(source Rank, tag Tag) (payload []byte, err error)

	// ISend posts a non-blocking send of payload to dest tagged tag.
	ISend(dest Rank, tag Tag, payload []byte) SendRequest

	// WaitAll blocks until every SendRequest in requests has completed.
	WaitAll(requests []SendRequest) error

	// IRecv posts a non-blocking receive matching (source, tag). Poll it
	// with Test().
	IRecv(source Rank, tag Tag) RecvRequest

	// Cancel abandons a posted non-blocking receive. A no-op if req has
	// already completed.
	Cancel(req RecvRequest)

	// Drain invokes the registered Handler for every message currently
	// queued, until the inbox is empty. It does not block waiting for
	// new arrivals.
	Drain()
}
