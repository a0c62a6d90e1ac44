package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"objectarchive/blunder"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "archive.dat")
}

// scenario 1: empty archive.
func TestEmptyArchive(t *testing.T) {
	assert := assert.New(t)

	path := tempStorePath(t)
	s := New(nil)
	assert.Nil(s.Open(path))
	assert.Nil(s.Close())

	fi, err := os.Stat(path)
	assert.Nil(err)
	assert.Equal(int64(fileHeaderSize), fi.Size())
}

// scenario 2: two inserts, reopen.
func TestTwoInsertsReopen(t *testing.T) {
	assert := assert.New(t)

	path := tempStorePath(t)

	s := New(nil)
	assert.Nil(s.Open(path))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(0), []byte("1"), true)
	assert.Nil(err)
	_, err = s.Insert(uint64(2), []byte("3"), true)
	assert.Nil(err)

	assert.Nil(s.Close())

	s2 := New(nil)
	assert.Nil(s2.Open(path))

	keys := s2.AvailableKeys()
	assert.Len(keys, 2)

	data0, found, err := s2.Load(uint64(0), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("1", string(data0))

	data2, found, err := s2.Load(uint64(2), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("3", string(data2))

	assert.Nil(s2.Close())
}

// scenario 3: overwrite.
func TestOverwrite(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(0), []byte("1"), true)
	assert.Nil(err)
	_, err = s.Insert(uint64(0), []byte("3"), true)
	assert.Nil(err)

	assert.Len(s.AvailableKeys(), 1)

	data, found, err := s.Load(uint64(0), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("3", string(data))

	assert.Nil(s.Close())
}

// scenario 4: small buffer forces eviction, both entries still load
// correctly from disk.
func TestSmallBufferForcesEviction(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(50))

	_, err := s.Insert(uint64(0), []byte("1"), true)
	assert.Nil(err)
	_, err = s.Insert(uint64(2), []byte("3"), true)
	assert.Nil(err)

	assert.LessOrEqual(s.bufferSize, s.maxBufferSize)

	data0, found, err := s.Load(uint64(0), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("1", string(data0))

	data2, found, err := s.Load(uint64(2), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("3", string(data2))

	assert.Nil(s.Close())
}

// scenario 5: an oversize object is written through immediately and
// does not permanently grow the buffer.
func TestOversizeObject(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(1))

	n, err := s.Insert(uint64(0), []byte("1"), true)
	assert.Nil(err)
	assert.Equal(1, n)

	assert.Equal(uint64(0), s.bufferSize)
	assert.Equal(0, s.lru.Len())

	data, found, err := s.Load(uint64(0), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("1", string(data))

	// keep_in_buffer=true still must not permanently grow the buffer
	// past MaxBufferSize once the call returns.
	assert.Equal(uint64(0), s.bufferSize)

	assert.Nil(s.Close())
}

func TestRemoveUnknownKeyIsNoOp(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))

	assert.Nil(s.Remove(uint64(99)))

	_, found, err := s.Load(uint64(99), true)
	assert.Nil(err)
	assert.False(found)

	assert.Nil(s.Close())
}

func TestRemoveThenLoad(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)
	assert.Nil(s.Remove(uint64(1)))

	_, found, err := s.Load(uint64(1), true)
	assert.Nil(err)
	assert.False(found)

	assert.Nil(s.Close())
}

func TestRenameRoundTrip(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)
	assert.Nil(s.Rename(uint64(1), uint64(2)))

	_, found, err := s.Load(uint64(1), true)
	assert.Nil(err)
	assert.False(found)

	data, found, err := s.Load(uint64(2), true)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("v", string(data))

	assert.Nil(s.Close())
}

func TestRenameUnknownKeyIsNoOp(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))

	assert.Nil(s.Rename(uint64(1), uint64(2)))
	assert.Len(s.AvailableKeys(), 0)

	assert.Nil(s.Close())
}

func TestFlushIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	path := tempStorePath(t)

	s := New(nil)
	assert.Nil(s.Open(path))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)
	assert.Nil(s.Flush())

	fi1, err := os.Stat(path)
	assert.Nil(err)

	assert.Nil(s.Flush())

	fi2, err := os.Stat(path)
	assert.Nil(err)
	assert.Equal(fi1.Size(), fi2.Size())

	assert.Nil(s.Close())
}

func TestClearLeavesOnlyEmptyHeader(t *testing.T) {
	assert := assert.New(t)

	path := tempStorePath(t)

	s := New(nil)
	assert.Nil(s.Open(path))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)
	_, err = s.Insert(uint64(2), []byte("w"), true)
	assert.Nil(err)

	assert.Nil(s.Clear())

	assert.Len(s.AvailableKeys(), 0)

	fi, err := os.Stat(path)
	assert.Nil(err)
	assert.Equal(int64(fileHeaderSize), fi.Size())

	assert.Nil(s.Close())
}

func TestMaxBufferSizeZeroWritesThrough(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(0))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)

	assert.Equal(uint64(0), s.bufferSize)
	assert.Equal(0, s.lru.Len())

	assert.Nil(s.Close())
}

func TestSetMaxBufferSizeEvictsImmediately(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(100))

	_, err := s.Insert(uint64(1), []byte("hello"), true)
	assert.Nil(err)
	assert.Equal(uint64(5), s.bufferSize)

	assert.Nil(s.SetMaxBufferSize(1))
	assert.Equal(uint64(0), s.bufferSize)

	data, found, err := s.Load(uint64(1), false)
	assert.Nil(err)
	assert.True(found)
	assert.Equal("hello", string(data))

	assert.Nil(s.Close())
}

func TestTemporaryStoreDeletesFileOnClose(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(""))

	path := s.filePath
	_, err := os.Stat(path)
	assert.Nil(err)

	_, err = s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)

	assert.Nil(s.Close())

	_, err = os.Stat(path)
	assert.True(os.IsNotExist(err))
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	assert := assert.New(t)

	path := tempStorePath(t)
	assert.Nil(os.WriteFile(path, []byte{1, 2, 3, 4}, 0644))

	s := New(nil)
	assert.Nil(s.Open(path))

	assert.Len(s.AvailableKeys(), 0)

	fi, err := os.Stat(path)
	assert.Nil(err)
	assert.Equal(int64(fileHeaderSize), fi.Size())

	assert.Nil(s.Close())
}

func TestIsAvailable(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	assert.Nil(s.Open(tempStorePath(t)))
	assert.Nil(s.SetMaxBufferSize(100))

	assert.False(s.IsAvailable(uint64(1)))

	_, err := s.Insert(uint64(1), []byte("v"), true)
	assert.Nil(err)

	assert.True(s.IsAvailable(uint64(1)))

	assert.Nil(s.Close())
}

func TestOpenOnMissingDirectoryFails(t *testing.T) {
	assert := assert.New(t)

	s := New(nil)
	err := s.Open(filepath.Join(t.TempDir(), "nonexistent", "archive.dat"))
	assert.NotNil(err)
	assert.True(blunder.Is(err, blunder.IOError))
}
