// Package overlay implements the distributed consistency overlay atop
// a store.Store: it forwards mutations eagerly to every known peer,
// fetches objects missing locally from whichever peer has them, tracks
// peer liveness, and tolerates peer death mid-fetch. Consistency is
// best-effort — peers may temporarily disagree.
//
// Overlay owns a *store.Store by composition rather than extending it;
// the Store's exported methods are the only coupling point.
package overlay

import (
	"github.com/google/btree"

	"objectarchive/codec"
	"objectarchive/dispatch"
	"objectarchive/store"
	"objectarchive/trackedlock"
)

// InsertFilter decides, on receipt of an Inserted broadcast for key,
// whether to eagerly pull and cache the new value locally. The default
// installed by New always returns false.
type InsertFilter func(key interface{}) bool

// Overlay wraps a *store.Store with multi-peer consistency. The zero
// value is not ready to use; construct with New.
type Overlay struct {
	lock trackedlock.Mutex

	store *store.Store
	disp  dispatch.Dispatcher
	codec codec.Codec
	tags  Tags

	self      dispatch.Rank
	peerRanks []dispatch.Rank
	alive     map[dispatch.Rank]bool

	requestCounter uint64
	inFlight       *btree.BTree

	insertFilter InsertFilter

	closed bool
}

// New wraps st with an Overlay communicating over disp, using c to
// encode keys for in-flight request bookkeeping (a nil c defaults to
// codec.GobCodec{}, and should normally be the same Codec given to
// st). peerRanks lists every other rank participating in the overlay;
// tags assigns the eight message kinds distinct dispatcher tags.
//
// Construction announces this rank alive to every peer in peerRanks
// (including ones that haven't announced themselves yet) and drains
// the dispatcher once before returning.
func New(st *store.Store, disp dispatch.Dispatcher, c codec.Codec, tags Tags, peerRanks []dispatch.Rank) (*Overlay, error) {
	if err := tags.validate(); err != nil {
		return nil, err
	}

	if c == nil {
		c = codec.GobCodec{}
	}

	o := &Overlay{
		store:        st,
		disp:         disp,
		codec:        c,
		tags:         tags,
		self:         disp.Self(),
		peerRanks:    append([]dispatch.Rank(nil), peerRanks...),
		alive:        make(map[dispatch.Rank]bool),
		inFlight:     btree.New(2),
		insertFilter: func(interface{}) bool { return false },
	}

	o.registerHandlers()

	o.lock.Lock()
	o.alive[o.self] = true
	if err := o.broadcastAllLocked(o.tags.Alive, aliveMsg{Alive: true}); err != nil {
		o.lock.Unlock()
		return nil, err
	}
	o.disp.Drain()
	o.lock.Unlock()

	return o, nil
}

// SetInsertFilter installs f as the insert filter. A nil f restores the
// always-false default.
func (o *Overlay) SetInsertFilter(f InsertFilter) {
	o.lock.Lock()
	defer o.lock.Unlock()

	if f == nil {
		f = func(interface{}) bool { return false }
	}
	o.insertFilter = f
}

// ProcessInbox drains the dispatcher, running every handler for
// currently queued messages. Hosts that are otherwise idle call this
// periodically so peer traffic (liveness, invalidation, fetch replies
// not tied to a call already pumping) still gets processed.
func (o *Overlay) ProcessInbox() {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.disp.Drain()
}

// Insert drains the dispatcher, stores data locally with
// keepInBuffer=true (so an imminent pull from a peer can be served
// immediately), and broadcasts Inserted(key) to every known-alive
// peer. If the caller asked for keepInBuffer=false, the entry is
// written back right after the broadcast.
func (o *Overlay) Insert(key interface{}, data []byte, keepInBuffer bool) (int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	return o.insertLocked(key, data, keepInBuffer)
}

// Load drains the dispatcher and tries a local Store.Load; on a local
// miss it runs the fetch protocol against every known-alive peer.
func (o *Overlay) Load(key interface{}, keepInBuffer bool) (data []byte, found bool, err error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	return o.loadLocked(key, keepInBuffer)
}

// Remove drains the dispatcher, broadcasts Invalidated(key), then
// removes the entry locally.
func (o *Overlay) Remove(key interface{}) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	return o.removeLocked(key)
}

// Rename drains the dispatcher, broadcasts ChangeKey(old, new), then
// renames the entry locally.
func (o *Overlay) Rename(oldKey, newKey interface{}) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	return o.renameLocked(oldKey, newKey)
}

// Close announces this rank dead to every peer and then closes the
// wrapped Store.
func (o *Overlay) Close() error {
	o.lock.Lock()
	o.disp.Drain()
	err := o.broadcastAllLocked(o.tags.Alive, aliveMsg{Alive: false})
	o.closed = true
	o.lock.Unlock()

	if err != nil {
		return err
	}

	return o.store.Close()
}
