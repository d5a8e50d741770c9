package session

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Storage reads and writes the shared sessions file.
//
// Readers never lock: writers replace the file atomically, so a read sees
// either the old or the new content. Writers serialize through a directory
// lock shared with every other agent-peek process.
type Storage struct {
	path string
	lock *dirLock
}

// NewStorage creates storage for the file at path, creating its directory
// with owner-only permissions.
func NewStorage(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Storage{
		path: path,
		lock: newDirLock(path),
	}

	// Clean up any leftover temp files from previous crashes
	s.cleanupTempFiles()

	return s, nil
}

// Path returns the file path this storage is using.
func (s *Storage) Path() string {
	return s.path
}

// cleanupTempFiles removes .tmp.* siblings abandoned by crashed writers.
// Recent ones may belong to a writer that is still running and are kept.
func (s *Storage) cleanupTempFiles() {
	matches, err := filepath.Glob(s.path + ".tmp.*")
	if err != nil {
		return
	}
	for _, tmpPath := range matches {
		info, err := os.Stat(tmpPath)
		if err != nil || time.Since(info.ModTime()) < time.Minute {
			continue
		}
		if err := os.Remove(tmpPath); err != nil {
			log.Printf("Warning: failed to clean up temp file %s: %v", tmpPath, err)
		} else {
			log.Printf("Cleaned up leftover temp file %s", filepath.Base(tmpPath))
		}
	}
}

// ReadRaw returns the file's bytes. A missing file is not an error.
func (s *Storage) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}
	return data, nil
}

// Load reads and tolerantly parses the file.
func (s *Storage) Load() ([]AgentSession, error) {
	data, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}
	return ParseRecords(data), nil
}

// Update runs fn against the current records while holding the writer lock
// and atomically rewrites the file when fn reports a change. It returns the
// bytes that were written, or nil when nothing changed.
func (s *Storage) Update(fn func(records []AgentSession) ([]AgentSession, bool)) ([]byte, error) {
	handle, err := s.lock.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := handle.Unlock(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}()

	current, err := s.Load()
	if err != nil {
		return nil, err
	}

	next, changed := fn(current)
	if !changed {
		return nil, nil
	}

	data, err := EncodeRecords(next)
	if err != nil {
		return nil, err
	}
	if err := s.writeAtomic(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Upsert replaces the record with the same id, or appends it.
func (s *Storage) Upsert(rec AgentSession) error {
	_, err := s.Update(func(records []AgentSession) ([]AgentSession, bool) {
		for i := range records {
			if records[i].ID == rec.ID {
				records[i] = rec
				return records, true
			}
		}
		return append(records, rec), true
	})
	return err
}

// Remove deletes the record with id. Removing an unknown id is a no-op.
func (s *Storage) Remove(id string) error {
	_, err := s.Update(func(records []AgentSession) ([]AgentSession, bool) {
		kept := records[:0]
		for _, r := range records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		return kept, len(kept) != len(records)
	})
	return err
}

// Prune removes every record for which stale returns true, re-evaluated
// under the lock so records refreshed by a concurrent writer survive.
func (s *Storage) Prune(stale func(AgentSession) bool) ([]byte, int, error) {
	removed := 0
	data, err := s.Update(func(records []AgentSession) ([]AgentSession, bool) {
		kept := records[:0]
		for _, r := range records {
			if stale(r) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		return kept, removed > 0
	})
	return data, removed, err
}

// writeAtomic uses the temp-file-then-rename pattern so readers and the
// file watcher never observe a partial write.
func (s *Storage) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)

	// Step 1: Write to a unique temp file in the target directory
	f, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Step 2: fsync the temp file to ensure data reaches disk before rename
	if err := f.Sync(); err != nil {
		// Log but don't fail - atomic rename still provides some safety
		log.Printf("Warning: fsync failed for %s: %v", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		log.Printf("Warning: chmod failed for %s: %v", tmpPath, err)
	}

	// Step 3: Atomic rename (this is atomic on POSIX systems)
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize save: %w", err)
	}
	return nil
}

func contentHash(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}
