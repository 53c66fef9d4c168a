//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris)

package blockstore

// Memory mapping is not wired up on this platform; DataAt falls back to
// ReadAt.
func (s *FileStore) remap() {}

func (s *FileStore) unmap() {}
