package overlay

import (
	"time"

	"github.com/google/btree"

	"objectarchive/dispatch"
	"objectarchive/stats"
)

// registerHandlers wires each of the eight message kinds to its
// handler. Called once from New, before the dispatcher is ever drained.
func (o *Overlay) registerHandlers() {
	o.disp.Register(o.tags.Alive, o.handleAlive)
	o.disp.Register(o.tags.Invalidated, o.handleInvalidated)
	o.disp.Register(o.tags.Inserted, o.handleInserted)
	o.disp.Register(o.tags.ChangeKey, o.handleChangeKey)
	o.disp.Register(o.tags.Request, o.handleRequest)
	o.disp.Register(o.tags.Response, o.handleResponse)
	o.disp.Register(o.tags.RequestData, o.handleRequestData)
	o.disp.Register(o.tags.ResponseData, o.handleResponseData)
}

// send encodes v and posts a non-blocking send to dest under tag,
// blocking until it completes.
func (o *Overlay) send(dest dispatch.Rank, tag dispatch.Tag, v interface{}) error {
	payload, err := encodeMsg(v)
	if err != nil {
		return err
	}

	req := o.disp.ISend(dest, tag, payload)
	return o.disp.WaitAll([]dispatch.SendRequest{req})
}

// aliveTargetsLocked returns every peer rank currently believed alive.
func (o *Overlay) aliveTargetsLocked() []dispatch.Rank {
	targets := make([]dispatch.Rank, 0, len(o.peerRanks))
	for _, r := range o.peerRanks {
		if o.alive[r] {
			targets = append(targets, r)
		}
	}
	return targets
}

// broadcastAllLocked sends v under tag to every rank in peerRanks,
// regardless of believed liveness (used only for the initial and final
// Alive announcements, where a dead peer simply drops the message).
func (o *Overlay) broadcastAllLocked(tag dispatch.Tag, v interface{}) error {
	for _, r := range o.peerRanks {
		if err := o.send(r, tag, v); err != nil {
			return err
		}
	}
	return nil
}

// broadcastAliveLocked sends v under tag to every currently-alive peer.
func (o *Overlay) broadcastAliveLocked(tag dispatch.Tag, v interface{}) error {
	for _, r := range o.aliveTargetsLocked() {
		if err := o.send(r, tag, v); err != nil {
			return err
		}
	}
	return nil
}

// pumpUntilLocked drains the dispatcher repeatedly, re-checking cond
// after every drain, until cond reports true. The overlay's lock is
// already held by the caller; handlers invoked synchronously out of
// Drain() re-enter the same re-entrant lock.
func (o *Overlay) pumpUntilLocked(cond func() bool) {
	for !cond() {
		o.disp.Drain()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (o *Overlay) insertLocked(key interface{}, data []byte, keepInBuffer bool) (int, error) {
	o.disp.Drain()

	n, err := o.store.Insert(key, data, true)
	if err != nil {
		return n, err
	}

	if err := o.broadcastAliveLocked(o.tags.Inserted, insertedMsg{Key: key}); err != nil {
		return n, err
	}

	stats.IncrementOperations(&stats.OverlayInsertedSentOps)

	if !keepInBuffer {
		if err := o.store.WriteBackKey(key); err != nil {
			return n, err
		}
	}

	return n, nil
}

func (o *Overlay) removeLocked(key interface{}) error {
	o.disp.Drain()

	if err := o.broadcastAliveLocked(o.tags.Invalidated, invalidatedMsg{Key: key}); err != nil {
		return err
	}
	stats.IncrementOperations(&stats.OverlayInvalidatedSentOps)

	return o.store.Remove(key)
}

func (o *Overlay) renameLocked(oldKey, newKey interface{}) error {
	o.disp.Drain()

	if err := o.broadcastAliveLocked(o.tags.ChangeKey, changeKeyMsg{OldKey: oldKey, NewKey: newKey}); err != nil {
		return err
	}

	return o.store.Rename(oldKey, newKey)
}

func (o *Overlay) loadLocked(key interface{}, keepInBuffer bool) (data []byte, found bool, err error) {
	o.disp.Drain()

	data, found, err = o.store.Load(key, keepInBuffer)
	if err != nil || found {
		return data, found, err
	}

	targets := o.aliveTargetsLocked()
	if len(targets) == 0 {
		return nil, false, nil
	}

	return o.fetchLocked(key, targets, keepInBuffer)
}

// fetchLocked runs the Request/Response/RequestData/ResponseData
// protocol against targets, caching a successful result locally with
// finalKeepInBuffer. It backs both Load's on-miss fetch (targets =
// every known-alive peer) and handleInserted's insert-filter pull
// (targets = just the broadcaster).
func (o *Overlay) fetchLocked(key interface{}, targets []dispatch.Rank, finalKeepInBuffer bool) (data []byte, found bool, err error) {
	keyBytes, err := o.codec.Encode(key)
	if err != nil {
		return nil, false, err
	}

	o.requestCounter++
	counter := o.requestCounter

	req := &request{keyBytes: keyBytes, counter: counter, waiting: len(targets)}
	o.inFlight.ReplaceOrInsert(req)
	defer o.inFlight.Delete(req)

	for _, t := range targets {
		if err := o.send(t, o.tags.Request, requestMsg{Key: key, Counter: counter}); err != nil {
			return nil, false, err
		}
		stats.IncrementOperations(&stats.OverlayRequestSentOps)
	}

	o.pumpUntilLocked(func() bool {
		return req.hasWinner || req.waiting <= 0
	})

	if !req.hasWinner {
		stats.IncrementOperations(&stats.OverlayFetchMissOps)
		return nil, false, nil
	}

	if err := o.send(req.winner, o.tags.RequestData, requestDataMsg{Key: key, Counter: counter}); err != nil {
		return nil, false, err
	}

	o.pumpUntilLocked(func() bool {
		return req.fulfilled || !o.alive[req.winner]
	})

	if !req.fulfilled || !req.valid {
		stats.IncrementOperations(&stats.OverlayFetchMissOps)
		return nil, false, nil
	}

	if _, err := o.store.Insert(key, req.data, true); err != nil {
		return nil, false, err
	}

	stats.IncrementOperations(&stats.OverlayFetchHitOps)

	return o.store.Load(key, finalKeepInBuffer)
}

// cancelInFlightForLocked marks every in-flight request waiting on or
// won by dead as no longer able to complete that way: decrements
// waiting for requests still seeking a winner, and fails requests that
// already picked dead as their winner. This is the documented
// approximation for the underlying "decrement every request dead was
// still a candidate for" rule, since in-flight bookkeeping here tracks
// only a waiting count, not the original candidate set.
func (o *Overlay) cancelInFlightForLocked(dead dispatch.Rank) {
	o.inFlight.Ascend(func(item btree.Item) bool {
		req := item.(*request)
		if req.hasWinner && req.winner == dead {
			req.fulfilled = true
			req.valid = false
		} else if !req.hasWinner && req.waiting > 0 {
			req.waiting--
		}
		return true
	})
}

func (o *Overlay) handleAlive(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg aliveMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	wasAlive := o.alive[source]
	o.alive[source] = msg.Alive

	if !msg.Alive {
		if wasAlive {
			stats.IncrementOperations(&stats.OverlayPeerDeathOps)
		}
		o.cancelInFlightForLocked(source)
		return
	}

	if !wasAlive {
		o.send(source, o.tags.Alive, aliveMsg{Alive: true})
		stats.IncrementOperations(&stats.OverlayAliveSentOps)
	}
}

func (o *Overlay) handleInvalidated(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg invalidatedMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	o.store.Remove(msg.Key)
}

func (o *Overlay) handleInserted(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg insertedMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	o.store.Remove(msg.Key)

	if !o.insertFilter(msg.Key) {
		return
	}

	o.fetchLocked(msg.Key, []dispatch.Rank{source}, false)
}

func (o *Overlay) handleChangeKey(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg changeKeyMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	o.store.Rename(msg.OldKey, msg.NewKey)
}

func (o *Overlay) handleRequest(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg requestMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	found := o.store.IsAvailable(msg.Key)

	o.send(source, o.tags.Response, responseMsg{Key: msg.Key, Counter: msg.Counter, Found: found})
	stats.IncrementOperations(&stats.OverlayResponseSentOps)
}

func (o *Overlay) handleResponse(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg responseMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	keyBytes, err := o.codec.Encode(msg.Key)
	if err != nil {
		return
	}

	item := o.inFlight.Get(&request{keyBytes: keyBytes, counter: msg.Counter})
	if item == nil {
		return
	}
	req := item.(*request)

	if !req.hasWinner {
		req.waiting--
		if msg.Found {
			req.hasWinner = true
			req.winner = source
		}
	}
}

func (o *Overlay) handleRequestData(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg requestDataMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	data, found, err := o.store.Load(msg.Key, true)
	valid := err == nil && found

	o.send(source, o.tags.ResponseData, responseDataMsg{Key: msg.Key, Counter: msg.Counter, Valid: valid, Data: data})
}

func (o *Overlay) handleResponseData(source dispatch.Rank, tag dispatch.Tag, payload []byte) {
	var msg responseDataMsg
	if err := decodeMsg(payload, &msg); err != nil {
		return
	}

	keyBytes, err := o.codec.Encode(msg.Key)
	if err != nil {
		return
	}

	item := o.inFlight.Get(&request{keyBytes: keyBytes, counter: msg.Counter})
	if item == nil {
		return
	}
	req := item.(*request)

	req.fulfilled = true
	req.valid = msg.Valid
	req.data = msg.Data
}
