//go:build unix

package filescrivener

import "golang.org/x/sys/unix"

// fileLock is an OS-level advisory exclusive lock on a sentinel file,
// enforcing cross-process mutual exclusion for writes (spec §4.1b, §5).
type fileLock struct {
	fd int
}

func acquireLock(path string) (*fileLock, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &fileLock{fd: fd}, nil
}

func (l *fileLock) Release() error {
	_ = unix.Flock(l.fd, unix.LOCK_UN)
	return unix.Close(l.fd)
}
