package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when the writer lock stays busy past the timeout.
var ErrLockTimeout = errors.New("timed out waiting for sessions lock")

const (
	defaultLockStaleAfter = 10 * time.Second
	defaultLockTimeout    = 5 * time.Second
	lockRetryInterval     = 20 * time.Millisecond
	lockOwnerFile         = "owner"
)

// dirLock is a cross-process mutex built on os.Mkdir, which is atomic on
// every platform we run on and needs no flock support. A lock directory
// older than staleAfter is assumed abandoned by a crashed writer and broken.
type dirLock struct {
	path       string
	staleAfter time.Duration
	timeout    time.Duration
}

// lockHandle represents an acquired lock that must be released.
type lockHandle struct {
	path  string
	token string
}

// newDirLock creates a lock guarding target. The lock directory is created
// at target + ".lock.d".
func newDirLock(target string) *dirLock {
	return &dirLock{
		path:       target + ".lock.d",
		staleAfter: defaultLockStaleAfter,
		timeout:    defaultLockTimeout,
	}
}

// Lock blocks until the lock is acquired or the timeout elapses.
func (l *dirLock) Lock() (*lockHandle, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)

	for {
		err := os.Mkdir(l.path, 0700)
		if err == nil {
			owner := fmt.Sprintf("%s %d\n", token, os.Getpid())
			if werr := os.WriteFile(filepath.Join(l.path, lockOwnerFile), []byte(owner), 0600); werr != nil {
				log.Printf("Warning: failed to record lock owner: %v", werr)
			}
			return &lockHandle{path: l.path, token: token}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}

		if l.breakIfStale() {
			continue
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(lockRetryInterval)
	}
}

func (l *dirLock) breakIfStale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		// Released between our Mkdir and Stat; retry immediately.
		return os.IsNotExist(err)
	}
	age := time.Since(info.ModTime())
	if age <= l.staleAfter {
		return false
	}
	log.Printf("Warning: breaking stale sessions lock %s (age %s)", l.path, age.Round(time.Millisecond))
	if err := os.RemoveAll(l.path); err != nil {
		log.Printf("Warning: failed to break stale lock: %v", err)
		return false
	}
	return true
}

// Unlock releases the lock. A second Unlock is a no-op. If the lock was
// broken and re-taken by another writer meanwhile, it is left alone.
func (h *lockHandle) Unlock() error {
	if h == nil || h.path == "" {
		return nil
	}
	path := h.path
	h.path = ""

	owner, err := os.ReadFile(filepath.Join(path, lockOwnerFile))
	if err == nil && !strings.HasPrefix(string(owner), h.token) {
		return fmt.Errorf("sessions lock was taken over by another writer")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
