// Package memory turns physical addresses into bytes from a captured
// crash image. A Store is the flat byte container the capture tool wrote;
// an Accessor owns a cursor over one store plus the region table mapping
// physical addresses onto store offsets.
package memory

import (
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Store is a flat positional byte store holding captured physical memory.
// ReadAt follows pread semantics: it may return fewer bytes than requested
// without an error, and a return of 0 with a nil error means the offset is
// at or beyond the end of the store.
type Store interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// FileStore reads a crash image straight from a file. Reads are
// positional, so any number of accessors may share one FileStore.
type FileStore struct {
	fd   int
	path string
	size int64
}

func OpenFileStore(path string) (*FileStore, *errors.Error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, 0)
	}
	log.WithFields(log.Fields{"path": path, "size": st.Size}).Debug("opened crash image")
	return &FileStore{fd: fd, path: path, size: st.Size}, nil
}

func (s *FileStore) ReadAt(p []byte, off int64) (int, error) {
	return unix.Pread(s.fd, p, off)
}

func (s *FileStore) Size() int64 { return s.size }

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() *errors.Error {
	return wrap(unix.Close(s.fd))
}

// BufStore serves a capture held in memory. Handy for small captures and
// fixtures.
type BufStore struct {
	data []byte
}

func NewBufStore(data []byte) *BufStore {
	return &BufStore{data: data}
}

func (s *BufStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, unix.EINVAL
	}
	if off >= int64(len(s.data)) {
		return 0, nil
	}
	return copy(p, s.data[off:]), nil
}

func (s *BufStore) Size() int64 { return int64(len(s.data)) }

// LimitStore models capture tooling that cannot address the whole machine,
// like 32bit kdump kernels stopping at 64GiB. Offsets below Limit behave
// like the wrapped store; at or past it the store fails with EFBIG.
type LimitStore struct {
	Store Store
	Limit int64
}

func (s *LimitStore) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.Limit {
		return 0, unix.EFBIG
	}
	if rest := s.Limit - off; int64(len(p)) > rest {
		p = p[:rest]
	}
	return s.Store.ReadAt(p, off)
}

func (s *LimitStore) Size() int64 {
	return min(s.Store.Size(), s.Limit)
}
