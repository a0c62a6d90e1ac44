package overlay

import (
	"bytes"

	"github.com/google/btree"

	"objectarchive/dispatch"
)

// request is the in-flight bookkeeping for one outstanding fetch,
// keyed by (key, counter): how many peers are still being waited on,
// which one (if any) has agreed to supply the payload, and the
// payload itself once fulfilled. Tracked in a
// github.com/google/btree.BTree rather than a map, the way outstanding
// RPC requests get tracked elsewhere in this codebase.
type request struct {
	keyBytes []byte
	counter  uint64

	waiting   int
	hasWinner bool
	winner    dispatch.Rank

	fulfilled bool
	valid     bool
	data      []byte
}

// Less implements btree.Item, ordering requests by (keyBytes, counter).
func (r *request) Less(than btree.Item) bool {
	other, ok := than.(*request)
	if !ok {
		return false
	}

	if c := bytes.Compare(r.keyBytes, other.keyBytes); c != 0 {
		return c < 0
	}

	return r.counter < other.counter
}
