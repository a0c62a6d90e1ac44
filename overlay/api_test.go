package overlay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"objectarchive/dispatch"
	"objectarchive/store"
)

// pumper calls o.ProcessInbox in a loop until stop is closed, simulating
// a peer that is otherwise idle but still answering requests from other
// ranks. It always goes through ProcessInbox (not the raw Dispatcher) so
// every handler invocation holds o's lock, matching how handlers run
// when reached via Overlay's own pump loop.
func pumper(o *Overlay, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			o.ProcessInbox()
			time.Sleep(time.Millisecond)
		}
	}
}

func newPeer(t *testing.T, net *dispatch.Network, rank dispatch.Rank, peers []dispatch.Rank) (*store.Store, *Overlay) {
	st := store.New(nil)
	if err := st.Open(""); err != nil {
		t.Fatalf("open: %v", err)
	}

	d := net.NewDispatcher(rank)

	tags := Tags{
		Alive:        1,
		Invalidated:  2,
		Inserted:     3,
		ChangeKey:    4,
		Request:      5,
		Response:     6,
		RequestData:  7,
		ResponseData: 8,
	}

	o, err := New(st, d, nil, tags, peers)
	if err != nil {
		t.Fatalf("overlay.New: %v", err)
	}

	return st, o
}

// settle lets two already-constructed peers exchange their initial Alive
// handshakes: each must drain the other's greeting out of its own inbox.
func settle(overlays ...*Overlay) {
	for i := 0; i < 4; i++ {
		for _, o := range overlays {
			o.ProcessInbox()
		}
	}
}

func TestTagsValidateRejectsDuplicate(t *testing.T) {
	assert := assert.New(t)

	tags := Tags{
		Alive: 1, Invalidated: 1, Inserted: 2, ChangeKey: 3,
		Request: 4, Response: 5, RequestData: 6, ResponseData: 7,
	}
	assert.NotNil(tags.validate())
}

func TestTagsValidateAcceptsDistinct(t *testing.T) {
	assert := assert.New(t)

	tags := Tags{
		Alive: 1, Invalidated: 2, Inserted: 3, ChangeKey: 4,
		Request: 5, Response: 6, RequestData: 7, ResponseData: 8,
	}
	assert.Nil(tags.validate())
}

func TestInsertFilterPullsData(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, overlayB := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA, overlayB)

	overlayA.SetInsertFilter(func(key interface{}) bool { return true })

	stopB := make(chan struct{})
	go pumper(overlayB, stopB)
	defer close(stopB)

	_, err := overlayB.Insert("k2", []byte("world"), true)
	assert.Nil(err)

	var found bool
	for i := 0; i < 200; i++ {
		overlayA.ProcessInbox()
		if storeA.IsAvailable("k2") {
			found = true
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(found)

	data, ok, err := storeA.Load("k2", true)
	assert.Nil(err)
	assert.True(ok)
	assert.Equal([]byte("world"), data)
}

func TestLoadFetchesFromPeer(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, overlayB := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA, overlayB)

	_, err := overlayB.Insert("k3", []byte("payload"), true)
	assert.Nil(err)
	settle(overlayA, overlayB)

	stopB := make(chan struct{})
	go pumper(overlayB, stopB)
	defer close(stopB)

	data, found, err := overlayA.Load("k3", true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal([]byte("payload"), data)
}

func TestLoadMissWhenNoPeerHasKey(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, overlayB := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA, overlayB)

	stopB := make(chan struct{})
	go pumper(overlayB, stopB)
	defer close(stopB)

	data, found, err := overlayA.Load("nope", true)
	assert.Nil(err)
	assert.False(found)
	assert.Nil(data)
}

func TestLoadMissWhenNoAliveTargets(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, _ := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA)

	overlayA.lock.Lock()
	overlayA.alive[1] = false
	overlayA.lock.Unlock()

	data, found, err := overlayA.Load("anything", true)
	assert.Nil(err)
	assert.False(found)
	assert.Nil(data)
}

func TestRemovePropagatesToPeer(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, overlayB := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA, overlayB)

	// Seed B directly (as if it had independently learned of the key)
	// rather than relying on insert-filter pull, which defaults to off.
	_, err := storeB.Insert("k4", []byte("v"), true)
	assert.Nil(err)
	assert.True(storeB.IsAvailable("k4"))

	err = overlayA.Remove("k4")
	assert.Nil(err)
	settle(overlayA, overlayB)

	assert.False(storeB.IsAvailable("k4"))
}

func TestRenamePropagatesToPeer(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, overlayB := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA, overlayB)

	_, err := storeB.Insert("old", []byte("v"), true)
	assert.Nil(err)
	assert.True(storeB.IsAvailable("old"))

	err = overlayA.Rename("old", "new")
	assert.Nil(err)
	settle(overlayA, overlayB)

	assert.False(storeB.IsAvailable("old"))
	assert.True(storeB.IsAvailable("new"))
}

func TestHandleAliveDeathCancelsInFlightRequest(t *testing.T) {
	assert := assert.New(t)

	net := dispatch.NewNetwork()
	storeA, overlayA := newPeer(t, net, 0, []dispatch.Rank{1})
	storeB, _ := newPeer(t, net, 1, []dispatch.Rank{0})
	defer storeA.Close()
	defer storeB.Close()

	settle(overlayA)

	overlayA.lock.Lock()
	req := &request{keyBytes: []byte("k"), counter: 1, waiting: 1}
	overlayA.inFlight.ReplaceOrInsert(req)
	overlayA.lock.Unlock()

	payload, err := encodeMsg(aliveMsg{Alive: false})
	assert.Nil(err)

	overlayA.lock.Lock()
	overlayA.handleAlive(1, overlayA.tags.Alive, payload)
	assert.Equal(0, req.waiting)
	overlayA.lock.Unlock()
}
