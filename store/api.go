// Package store implements the local single-file keyed object archive:
// a backing file, an in-memory index, a bounded LRU buffer, and the
// rebuild logic that compacts the file on flush.
//
// Every exported method locks Store.lock and delegates to an unexported
// *Locked method that assumes the lock is already held — the thin
// public/internal split this package needs because several operations
// call each other (insert calls remove and unload; load calls
// write-back; flush calls unload then rebuild; clear calls remove
// repeatedly then flush) and trackedlock.Mutex, while re-entrant, still
// reads more clearly when each layer only locks once.
package store

import (
	"container/list"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/sortedmap"
	"github.com/google/uuid"

	"objectarchive/blunder"
	"objectarchive/codec"
	"objectarchive/platform"
	"objectarchive/trackedlock"
)

// Store is a single backing file, its index of Entrys, and the LRU
// buffer mediating access to them. The zero value is not ready to use;
// construct with New.
type Store struct {
	lock trackedlock.Mutex

	codec codec.Codec
	index sortedmap.LLRBTree
	lru   *list.List

	bufferSize    uint64
	maxBufferSize uint64
	dirtyFile     bool

	file      *os.File
	filePath  string
	temporary bool
	opened    bool
}

// New returns a Store that encodes keys with c. A nil c defaults to
// codec.GobCodec{}. The Store is not usable until Open is called.
func New(c codec.Codec) *Store {
	if c == nil {
		c = codec.GobCodec{}
	}

	s := &Store{codec: c, lru: list.New()}
	s.index = sortedmap.NewLLRBTree(sortedmap.CompareByteSlice, s)

	return s
}

// DumpKey implements sortedmap.DumpCallbacks.
func (s *Store) DumpKey(key sortedmap.Key) (string, error) {
	kb, ok := key.([]byte)
	if !ok {
		return "", fmt.Errorf("store: index key is not a []byte: %T", key)
	}
	return hex.EncodeToString(kb), nil
}

// DumpValue implements sortedmap.DumpCallbacks.
func (s *Store) DumpValue(value sortedmap.Value) (string, error) {
	e, ok := value.(*Entry)
	if !ok {
		return "", fmt.Errorf("store: index value is not an *Entry: %T", value)
	}
	return fmt.Sprintf("size=%d modified=%v indexInFile=%d", e.Size, e.Modified, e.IndexInFile), nil
}

// Open opens or creates the backing file at path. An empty path opens a
// unique temporary file that is deleted on Close. If the file exists and
// is non-empty its header is parsed to rebuild the index (payloads are
// not read); a parse failure is treated as a corrupt file and the file
// is truncated and reinitialized as empty.
func (s *Store) Open(path string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.openLocked(path)
}

// SetMaxBufferSize sets the buffer ceiling to n bytes. If n is less
// than the current BufferSize, the LRU tail is evicted immediately
// until BufferSize <= n. Zero is legal and forces every insert to
// write through.
func (s *Store) SetMaxBufferSize(n uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.setMaxBufferSizeLocked(n)
}

// SetMaxBufferSizeString parses str with ParseSize and applies the
// result via SetMaxBufferSize.
func (s *Store) SetMaxBufferSizeString(str string) error {
	n, err := ParseSize(str)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.setMaxBufferSizeLocked(n)
}

// SetMaxBufferSizeFraction sets the ceiling to a fraction f of total
// installed RAM (via platform.MemSize), divided by
// platform.GoHeapAllocationMultiplier to leave headroom for Go runtime
// and GC overhead above the raw buffered-bytes count.
func (s *Store) SetMaxBufferSizeFraction(f float64) error {
	if f < 0 {
		return blunder.NewError(blunder.InvalidArgError, "store: negative buffer size fraction %v", f)
	}

	effectiveRAM := float64(platform.MemSize()) / platform.GoHeapAllocationMultiplier
	n := uint64(f * effectiveRAM)

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.setMaxBufferSizeLocked(n)
}

// Insert stores data under key and returns len(data). If len(data)
// exceeds MaxBufferSize, keepInBuffer is forced false and data is
// written through immediately. Insert first removes any existing entry
// under key.
func (s *Store) Insert(key interface{}, data []byte, keepInBuffer bool) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.insertLocked(key, data, keepInBuffer)
}

// Load returns the payload stored under key. found is false if key is
// not in the index (not an error). keepInBuffer controls whether the
// entry remains buffered after the call.
func (s *Store) Load(key interface{}, keepInBuffer bool) (data []byte, found bool, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.loadLocked(key, keepInBuffer)
}

// Remove deletes the entry under key, if any. Removing an unknown key
// is not an error.
func (s *Store) Remove(key interface{}) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.removeLocked(key)
}

// Rename moves the entry under oldKey to newKey, preserving its data,
// on-disk offset, size, modified flag, and LRU position. A missing
// oldKey is a no-op.
func (s *Store) Rename(oldKey, newKey interface{}) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.renameLocked(oldKey, newKey)
}

// Unload repeatedly writes back the LRU tail entry until BufferSize <=
// target.
func (s *Store) Unload(target uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.unloadLocked(target)
}

// Flush evicts every buffered entry, then, if the on-disk layout no
// longer matches the index, rebuilds and reopens the backing file.
func (s *Store) Flush() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.flushLocked()
}

// Clear removes every entry, then flushes; the resulting file contains
// only the empty header.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.clearLocked()
}

// IsAvailable reports whether key is present in the index. It never
// touches the backing file.
func (s *Store) IsAvailable(key interface{}) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	keyBytes, err := s.codec.Encode(key)
	if err != nil {
		return false
	}

	_, ok, err := s.index.GetByKey(keyBytes)
	return err == nil && ok
}

// AvailableKeys returns a snapshot of every key currently indexed. The
// order matches the index's iteration order (sorted by encoded key
// bytes); callers should not rely on any particular ordering.
func (s *Store) AvailableKeys() []interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()

	n, err := s.index.Len()
	if err != nil {
		return nil
	}

	keys := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		_, value, ok, err := s.index.GetByIndex(i)
		if err != nil || !ok {
			continue
		}
		keys = append(keys, value.(*Entry).Key)
	}

	return keys
}

// WriteBackKey writes back the entry under key if it is currently
// buffered, without removing it from the index. A missing key, or one
// that is indexed but not currently buffered, is a no-op.
func (s *Store) WriteBackKey(key interface{}) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writeBackKeyLocked(key)
}

// Close is Store's destructor. A non-temporary Store is flushed first;
// a temporary one is merely closed and its backing file deleted.
func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.closeLocked()
}

func newTempPath() string {
	return filepath.Join(os.TempDir(), "objectarchive-"+uuid.New().String()+".dat")
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return blunder.AddError(err, blunder.IOError)
}
