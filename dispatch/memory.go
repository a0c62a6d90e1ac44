package dispatch

import (
	"fmt"
	"sync"
	"time"
)

// Network is a fixed set of in-process peers sharing no actual network
// transport: ISend on one MemoryDispatcher delivers directly into the
// matching peer's inbox. It exists so overlay's own tests can exercise
// multi-peer scenarios (fetch, liveness, insert-filter pull) without a
// real socket, the same way this module's stats package tests drive its
// statsd sender against an in-process listener rather than a real
// collector.
type Network struct {
	mu    sync.Mutex
	peers map[Rank]*MemoryDispatcher
}

// NewNetwork returns an empty Network. Call NewDispatcher once per peer.
func NewNetwork() *Network {
	return &Network{peers: make(map[Rank]*MemoryDispatcher)}
}

// NewDispatcher registers and returns a new peer on net identified by self.
func (net *Network) NewDispatcher(self Rank) *MemoryDispatcher {
	d := &MemoryDispatcher{
		self:     self,
		net:      net,
		inbox:    make(map[Rank]map[Tag][][]byte),
		handlers: make(map[Tag]Handler),
	}

	net.mu.Lock()
	net.peers[self] = d
	net.mu.Unlock()

	return d
}

type memoryRecvRequest struct {
	dispatcher *MemoryDispatcher
	source     Rank
	tag        Tag

	satisfied bool
	gotSource Rank
	payload   []byte
}

func (r *memoryRecvRequest) Test() (done bool, source Rank, payload []byte, err error) {
	r.dispatcher.mu.Lock()
	defer r.dispatcher.mu.Unlock()

	return r.satisfied, r.gotSource, r.payload, nil
}

// MemoryDispatcher is the reference Dispatcher: one peer's inbox within
// a Network.
type MemoryDispatcher struct {
	mu       sync.Mutex
	self     Rank
	net      *Network
	inbox    map[Rank]map[Tag][][]byte // queued, unconsumed payloads, keyed source then tag, FIFO per pair
	handlers map[Tag]Handler
	pending  []*memoryRecvRequest // posted IRecv()s not yet satisfied
}

func (d *MemoryDispatcher) Self() Rank {
	return d.self
}

func (d *MemoryDispatcher) Register(tag Tag, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[tag] = handler
}

// deliver is called by the sending peer directly; it either satisfies a
// pending IRecv or queues the payload for later Recv/Probe/Drain.
func (d *MemoryDispatcher) deliver(source Rank, tag Tag, payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, req := range d.pending {
		if req.tag == tag && (req.source == AnyRank || req.source == source) {
			req.satisfied = true
			req.gotSource = source
			req.payload = payload
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}

	if d.inbox[source] == nil {
		d.inbox[source] = make(map[Tag][][]byte)
	}
	d.inbox[source][tag] = append(d.inbox[source][tag], payload)
}

// popLocked removes and returns the oldest queued payload matching
// (source, tag); source == AnyRank matches the first tag-matching entry
// found across all sources. Caller holds d.mu.
func (d *MemoryDispatcher) popLocked(source Rank, tag Tag) (payload []byte, sourceFound Rank, ok bool) {
	if source == AnyRank {
		for s, byTag := range d.inbox {
			queue := byTag[tag]
			if len(queue) > 0 {
				payload, queue = queue[0], queue[1:]
				d.inbox[s][tag] = queue
				return payload, s, true
			}
		}
		return nil, 0, false
	}

	queue := d.inbox[source][tag]
	if len(queue) == 0 {
		return nil, 0, false
	}
	payload, queue = queue[0], queue[1:]
	d.inbox[source][tag] = queue
	return payload, source, true
}

func (d *MemoryDispatcher) Probe() (source Rank, tag Tag, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for s, byTag := range d.inbox {
		for t, queue := range byTag {
			if len(queue) > 0 {
				return s, t, true
			}
		}
	}
	return 0, 0, false
}

func (d *MemoryDispatcher) IRecv(source Rank, tag Tag) RecvRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := &memoryRecvRequest{dispatcher: d, source: source, tag: tag}

	if payload, gotSource, ok := d.popLocked(source, tag); ok {
		req.satisfied = true
		req.gotSource = gotSource
		req.payload = payload
		return req
	}

	d.pending = append(d.pending, req)
	return req
}

// Recv polls its own IRecv until satisfied. This reference Dispatcher is
// built for tests and a single in-process simulation, not for production
// latency, so a short poll loop is preferable to the extra bookkeeping a
// condition-variable wakeup would need for a request shape (AnyRank) that
// can be satisfied by more than one sender.
func (d *MemoryDispatcher) Recv(source Rank, tag Tag) (payload []byte, err error) {
	req := d.IRecv(source, tag)
	for {
		if done, _, p, e := req.Test(); done {
			return p, e
		}
		time.Sleep(time.Millisecond)
	}
}

type memorySendRequest struct{}

func (d *MemoryDispatcher) ISend(dest Rank, tag Tag, payload []byte) SendRequest {
	d.net.mu.Lock()
	target, ok := d.net.peers[dest]
	d.net.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("dispatch: ISend to unknown rank %d", dest))
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	target.deliver(d.self, tag, cp)

	return memorySendRequest{}
}

// WaitAll is a no-op: MemoryDispatcher's ISend already delivers
// synchronously.
func (d *MemoryDispatcher) WaitAll(requests []SendRequest) error {
	return nil
}

func (d *MemoryDispatcher) Cancel(req RecvRequest) {
	mr, ok := req.(*memoryRecvRequest)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, pending := range d.pending {
		if pending == mr {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}

func (d *MemoryDispatcher) Drain() {
	for {
		source, tag, ok := d.Probe()
		if !ok {
			return
		}

		d.mu.Lock()
		payload, _, popped := d.popLocked(source, tag)
		handler := d.handlers[tag]
		d.mu.Unlock()

		if !popped {
			continue
		}
		if handler != nil {
			handler(source, tag, payload)
		}
	}
}
