package storage

import (
	"os"
	"sync"
	"syscall"
)

// fileLock guards one file within the process and, through flock on a
// sidecar ".lock" file, across processes.
type fileLock struct {
	mu   sync.Mutex
	path string
}

// acquire blocks until the lock is held and returns its release function.
// The sidecar file is left in place; removing it would let a waiter lock a
// stale inode.
func (l *fileLock) acquire() (func(), error) {
	l.mu.Lock()

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return nil, err
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		l.mu.Unlock()
	}, nil
}
