//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris

package blockstore

import (
	"golang.org/x/sys/unix"
)

// remap maps the image file read-only. Mapping failures are tolerated; the
// store falls back to ReadAt for DataAt.
func (s *FileStore) remap() {
	if s.mapped != nil {
		_ = unix.Munmap(s.mapped)
		s.mapped = nil
	}
	if s.size == 0 {
		return
	}
	b, err := unix.Mmap(int(s.f.Fd()), 0, int(s.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return
	}
	s.mapped = b
}

func (s *FileStore) unmap() {
	if s.mapped != nil {
		_ = unix.Munmap(s.mapped)
		s.mapped = nil
	}
}
