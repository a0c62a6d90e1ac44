package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NVIDIA/sortedmap"
	"github.com/google/uuid"

	"objectarchive/blunder"
	"objectarchive/logger"
	"objectarchive/stats"
)

func (s *Store) openLocked(path string) error {
	if s.opened {
		if s.file != nil {
			s.file.Close()
		}
		if s.temporary && s.filePath != "" {
			os.Remove(s.filePath)
		}
	}

	s.index = sortedmap.NewLLRBTree(sortedmap.CompareByteSlice, s)
	s.lru.Init()
	s.bufferSize = 0
	s.dirtyFile = false
	s.opened = false

	temporary := false
	if path == "" {
		path = newTempPath()
		temporary = true
	}

	fi, statErr := os.Stat(path)
	needsInit := statErr != nil || fi.Size() == 0

	var file *os.File
	var err error

	if needsInit {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return wrapIO(err)
		}
		if _, err = file.Write(packFileHeader(0)); err != nil {
			file.Close()
			return wrapIO(err)
		}
	} else {
		file, err = os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			return wrapIO(err)
		}
	}

	s.file = file
	s.filePath = path
	s.temporary = temporary
	s.opened = true

	if !needsInit {
		if parseErr := s.parseIndexLocked(); parseErr != nil {
			logger.WarnfWithError(parseErr, "store: index parse failed for %q, reinitializing as empty", path)

			s.index = sortedmap.NewLLRBTree(sortedmap.CompareByteSlice, s)

			if err := s.file.Truncate(0); err != nil {
				return wrapIO(err)
			}
			if _, err := s.file.Seek(0, io.SeekStart); err != nil {
				return wrapIO(err)
			}
			if _, err := s.file.Write(packFileHeader(0)); err != nil {
				return wrapIO(err)
			}
		}
	}

	return nil
}

// parseIndexLocked walks the backing file sequentially from its start,
// decoding each entry's key and recording (key, size, offset-of-payload)
// as an Entry with Modified=false. Payloads themselves are skipped, not
// read.
func (s *Store) parseIndexLocked() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	headerBuf := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(s.file, headerBuf); err != nil {
		return err
	}

	entryCount, err := unpackFileHeader(headerBuf)
	if err != nil {
		return err
	}

	ehBuf := make([]byte, entryHeaderSize)

	for i := uint64(0); i < entryCount; i++ {
		if _, err := io.ReadFull(s.file, ehBuf); err != nil {
			return err
		}

		keyBlobSize, payloadSize, err := unpackEntryHeader(ehBuf)
		if err != nil {
			return err
		}

		keyBlob := make([]byte, keyBlobSize)
		if _, err := io.ReadFull(s.file, keyBlob); err != nil {
			return err
		}

		var key interface{}
		if err := s.codec.Decode(keyBlob, &key); err != nil {
			return err
		}

		offset, err := s.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if _, err := s.file.Seek(int64(payloadSize), io.SeekCurrent); err != nil {
			return err
		}

		entry := &Entry{
			Key:         key,
			KeyBytes:    keyBlob,
			IndexInFile: uint64(offset),
			Size:        payloadSize,
			Modified:    false,
		}

		if _, err := s.index.Put(keyBlob, entry); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) setMaxBufferSizeLocked(n uint64) error {
	s.maxBufferSize = n

	if s.bufferSize > n {
		return s.unloadLocked(n)
	}

	return nil
}

func (s *Store) insertLocked(key interface{}, data []byte, keepInBuffer bool) (int, error) {
	size := uint64(len(data))
	if size > s.maxBufferSize {
		keepInBuffer = false
	}

	if err := s.removeLocked(key); err != nil {
		return 0, err
	}

	keyBytes, err := s.codec.Encode(key)
	if err != nil {
		return 0, blunder.AddError(err, blunder.InvalidArgError)
	}

	entry := &Entry{Key: key, KeyBytes: keyBytes, Size: size, Data: data, Modified: true}

	if keepInBuffer {
		if s.bufferSize+size > s.maxBufferSize {
			target := uint64(0)
			if s.maxBufferSize >= size {
				target = s.maxBufferSize - size
			}
			if err := s.unloadLocked(target); err != nil {
				return 0, err
			}
		}

		entry.element = s.lru.PushFront(entry)
		s.bufferSize += size
	} else {
		if err := s.persistLocked(entry); err != nil {
			return 0, err
		}
	}

	if _, err := s.index.Put(keyBytes, entry); err != nil {
		return 0, wrapIO(err)
	}

	s.dirtyFile = true

	stats.IncrementOperationsAndBucketedBytes(stats.StoreInsert, size)

	return int(size), nil
}

func (s *Store) loadLocked(key interface{}, keepInBuffer bool) (data []byte, found bool, err error) {
	keyBytes, err := s.codec.Encode(key)
	if err != nil {
		return nil, false, blunder.AddError(err, blunder.InvalidArgError)
	}

	value, ok, err := s.index.GetByKey(keyBytes)
	if err != nil {
		return nil, false, wrapIO(err)
	}
	if !ok {
		stats.IncrementOperations(&stats.StoreLoadMissOps)
		return nil, false, nil
	}

	entry := value.(*Entry)

	if entry.Data == nil {
		if keepInBuffer && s.bufferSize+entry.Size > s.maxBufferSize {
			target := uint64(0)
			if s.maxBufferSize >= entry.Size {
				target = s.maxBufferSize - entry.Size
			}
			if err := s.unloadLocked(target); err != nil {
				return nil, true, err
			}
		}

		if _, err := s.file.Seek(int64(entry.IndexInFile), io.SeekStart); err != nil {
			return nil, true, wrapIO(err)
		}

		buf := make([]byte, entry.Size)
		if _, err := io.ReadFull(s.file, buf); err != nil {
			return nil, true, wrapIO(err)
		}

		entry.Data = buf
		entry.Modified = false
		s.bufferSize += entry.Size
		entry.element = s.lru.PushFront(entry)
	} else {
		s.lru.MoveToFront(entry.element)
	}

	out := make([]byte, len(entry.Data))
	copy(out, entry.Data)

	if !keepInBuffer {
		if err := s.writeBackLocked(entry); err != nil {
			return nil, true, err
		}
	} else if s.bufferSize > s.maxBufferSize {
		if err := s.unloadLocked(s.maxBufferSize); err != nil {
			return nil, true, err
		}
	}

	stats.IncrementOperations(&stats.StoreLoadHitOps)
	stats.IncrementOperationsAndBucketedBytes(stats.StoreLoad, entry.Size)

	return out, true, nil
}

func (s *Store) removeLocked(key interface{}) error {
	keyBytes, err := s.codec.Encode(key)
	if err != nil {
		return blunder.AddError(err, blunder.InvalidArgError)
	}

	value, ok, err := s.index.GetByKey(keyBytes)
	if err != nil {
		return wrapIO(err)
	}
	if !ok {
		return nil
	}

	entry := value.(*Entry)

	if entry.element != nil {
		s.bufferSize -= entry.Size
		s.lru.Remove(entry.element)
		entry.element = nil
	}

	if _, err := s.index.DeleteByKey(keyBytes); err != nil {
		return wrapIO(err)
	}

	s.dirtyFile = true

	stats.IncrementOperations(&stats.StoreRemoveOps)

	return nil
}

func (s *Store) renameLocked(oldKey, newKey interface{}) error {
	oldBytes, err := s.codec.Encode(oldKey)
	if err != nil {
		return blunder.AddError(err, blunder.InvalidArgError)
	}

	value, ok, err := s.index.GetByKey(oldBytes)
	if err != nil {
		return wrapIO(err)
	}
	if !ok {
		return nil
	}

	entry := value.(*Entry)

	newBytes, err := s.codec.Encode(newKey)
	if err != nil {
		return blunder.AddError(err, blunder.InvalidArgError)
	}

	if err := s.removeLocked(newKey); err != nil {
		return err
	}

	if _, err := s.index.DeleteByKey(oldBytes); err != nil {
		return wrapIO(err)
	}

	entry.Key = newKey
	entry.KeyBytes = newBytes

	if _, err := s.index.Put(newBytes, entry); err != nil {
		return wrapIO(err)
	}

	s.dirtyFile = true

	stats.IncrementOperations(&stats.StoreRenameOps)

	return nil
}

// writeBackKeyLocked writes back the entry under key if it is both
// indexed and currently buffered. A missing key, or one indexed but
// not buffered, is a no-op.
func (s *Store) writeBackKeyLocked(key interface{}) error {
	keyBytes, err := s.codec.Encode(key)
	if err != nil {
		return blunder.AddError(err, blunder.InvalidArgError)
	}

	value, ok, err := s.index.GetByKey(keyBytes)
	if err != nil {
		return wrapIO(err)
	}
	if !ok {
		return nil
	}

	entry := value.(*Entry)
	if entry.element == nil {
		return nil
	}

	return s.writeBackLocked(entry)
}

func (s *Store) unloadLocked(target uint64) error {
	for s.bufferSize > target {
		back := s.lru.Back()
		if back == nil {
			break
		}

		entry := back.Value.(*Entry)

		logger.Tracef("store: evicting key %v (%d bytes)", entry.Key, entry.Size)

		if err := s.writeBackLocked(entry); err != nil {
			return err
		}
	}

	stats.IncrementOperations(&stats.StoreUnloadOps)

	return nil
}

// persistLocked appends entry.Data to the end of the backing file if
// entry.Modified, recording the new IndexInFile, then clears Data. It
// does not touch BufferSize or the LRU list; callers that have already
// accounted entry into both use writeBackLocked instead.
func (s *Store) persistLocked(entry *Entry) error {
	if entry.Modified {
		offset, err := s.file.Seek(0, io.SeekEnd)
		if err != nil {
			return wrapIO(err)
		}

		if _, err := s.file.Write(entry.Data); err != nil {
			return wrapIO(err)
		}

		entry.IndexInFile = uint64(offset)
		entry.Modified = false
		s.dirtyFile = true
	}

	entry.Data = nil

	return nil
}

// writeBackLocked is the write-back algorithm: persist entry if dirty,
// then evict it from the buffer (clear Data, remove from the LRU list,
// subtract its size from BufferSize). The entry remains in the index
// with a valid IndexInFile.
func (s *Store) writeBackLocked(entry *Entry) error {
	if err := s.persistLocked(entry); err != nil {
		return err
	}

	if entry.element != nil {
		s.lru.Remove(entry.element)
		entry.element = nil
	}

	s.bufferSize -= entry.Size

	stats.IncrementOperations(&stats.StoreEvictOps)

	return nil
}

func (s *Store) flushLocked() error {
	if err := s.unloadLocked(0); err != nil {
		return err
	}

	if s.dirtyFile {
		if err := s.rebuildLocked(); err != nil {
			return err
		}
	}

	s.dirtyFile = false

	return nil
}

func (s *Store) clearLocked() error {
	keys := make([]interface{}, 0)

	n, err := s.index.Len()
	if err != nil {
		return wrapIO(err)
	}
	for i := 0; i < n; i++ {
		_, value, ok, err := s.index.GetByIndex(i)
		if err != nil || !ok {
			continue
		}
		keys = append(keys, value.(*Entry).Key)
	}

	for _, key := range keys {
		if err := s.removeLocked(key); err != nil {
			return err
		}
	}

	return s.flushLocked()
}

func (s *Store) closeLocked() error {
	if !s.opened {
		return nil
	}

	var err error

	if s.temporary {
		err = s.file.Close()
		os.Remove(s.filePath)
	} else {
		err = s.flushLocked()
		if closeErr := s.file.Close(); err == nil {
			err = closeErr
		}
	}

	s.opened = false

	return err
}

// rebuildLocked writes a fresh, compacted copy of the backing file to a
// temp file in the same directory (so the final rename is same-
// filesystem and atomic on POSIX), streaming each entry's payload from
// the current file, then swaps it in and re-parses to re-establish
// fresh IndexInFile values.
func (s *Store) rebuildLocked() error {
	dir := filepath.Dir(s.filePath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.rebuild", filepath.Base(s.filePath), uuid.New().String()))

	tmpFile, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapIO(err)
	}

	n, err := s.index.Len()
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return wrapIO(err)
	}

	if _, err := tmpFile.Write(packFileHeader(uint64(n))); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return wrapIO(err)
	}

	chunkSize := s.maxBufferSize
	if chunkSize == 0 {
		chunkSize = 1
	}
	buf := make([]byte, chunkSize)

	for i := 0; i < n; i++ {
		_, value, ok, err := s.index.GetByIndex(i)
		if err != nil || !ok {
			tmpFile.Close()
			os.Remove(tmpPath)
			return wrapIO(err)
		}

		entry := value.(*Entry)

		if _, err := tmpFile.Write(packEntryHeader(uint64(len(entry.KeyBytes)), entry.Size)); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return wrapIO(err)
		}
		if _, err := tmpFile.Write(entry.KeyBytes); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return wrapIO(err)
		}

		if _, err := s.file.Seek(int64(entry.IndexInFile), io.SeekStart); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return wrapIO(err)
		}

		remaining := entry.Size
		for remaining > 0 {
			toRead := chunkSize
			if remaining < toRead {
				toRead = remaining
			}
			if _, err := io.ReadFull(s.file, buf[:toRead]); err != nil {
				tmpFile.Close()
				os.Remove(tmpPath)
				return wrapIO(err)
			}
			if _, err := tmpFile.Write(buf[:toRead]); err != nil {
				tmpFile.Close()
				os.Remove(tmpPath)
				return wrapIO(err)
			}
			remaining -= toRead
		}
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return wrapIO(err)
	}
	if err := s.file.Close(); err != nil {
		os.Remove(tmpPath)
		return wrapIO(err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		if copyErr := copyFile(tmpPath, s.filePath); copyErr != nil {
			return wrapIO(copyErr)
		}
		os.Remove(tmpPath)
	}

	newFile, err := os.OpenFile(s.filePath, os.O_RDWR, 0644)
	if err != nil {
		return wrapIO(err)
	}
	s.file = newFile

	s.index = sortedmap.NewLLRBTree(sortedmap.CompareByteSlice, s)
	if err := s.parseIndexLocked(); err != nil {
		return wrapIO(err)
	}

	stats.IncrementOperationsEntriesAndBytes(stats.StoreFlush, uint64(n), 0)

	return nil
}

// copyFile is the cross-filesystem fallback for rebuildLocked's
// rename, used only when the temp file and the target somehow end up
// on different filesystems despite sharing a parent directory (e.g. a
// mount point boundary inside that directory).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
