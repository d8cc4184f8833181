package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

func wrap(err error) *errors.Error {
	if err != nil {
		return errors.Wrap(err, 1)
	}
	return nil
}

// Accessor resolves physical addresses to store bytes. It owns one cursor,
// so callers running concurrent lookups need one accessor each; the store
// behind them may be shared.
type Accessor struct {
	store   Store
	regions []types.MemRegion
	cursor  int64
}

// NewAccessor builds an accessor over store. With no regions the whole
// store is treated as one run of physical memory starting at address 0.
// Regions must be non empty and must not overlap in physical space.
func NewAccessor(store Store, regions []types.MemRegion) (*Accessor, *errors.Error) {
	if store == nil {
		return nil, errors.New("accessor needs a store")
	}
	if store.Size() == 0 {
		return nil, errors.New("accessor store is empty")
	}
	if len(regions) == 0 {
		regions = []types.MemRegion{{Start: 0, Size: uint64(store.Size()), Offset: 0}}
	}
	for i := range regions {
		if regions[i].Size == 0 {
			return nil, errors.New(fmt.Sprintf("empty region at %s", regions[i].Start))
		}
		rng := regions[i].Range()
		for j := range regions[:i] {
			if rng.IntersectsRange(regions[j].Range()) {
				return nil, errors.New(fmt.Sprintf("regions at %s and %s overlap", regions[i].Start, regions[j].Start))
			}
		}
	}
	log.WithFields(log.Fields{"regions": len(regions), "size": store.Size()}).Debug("accessor ready")
	return &Accessor{store: store, regions: regions}, nil
}

// locate resolves addr to a store offset plus the number of contiguous
// bytes its region still holds from there. On failure the errno tells why
// the address cannot be reached: ENXIO when no region maps it (offset -1),
// EFBIG when the mapped offset lies beyond what the store can address.
func (a *Accessor) locate(addr types.Maddr) (off int64, room int64, errno unix.Errno) {
	for i := range a.regions {
		r := &a.regions[i]
		if !r.Contains(addr) {
			continue
		}
		off = r.StoreOffset(addr)
		if off >= a.store.Size() {
			return off, 0, unix.EFBIG
		}
		return off, int64(r.Size - uint64(addr-r.Start)), 0
	}
	return -1, 0, unix.ENXIO
}

// Seek positions the accessor on the physical address addr. The cursor
// only moves on success.
func (a *Accessor) Seek(addr types.Maddr) *fault.Memseek {
	off, _, errno := a.locate(addr)
	if errno != 0 {
		return fault.NewMemseek(addr, off)
	}
	a.cursor = off
	return nil
}

// Read returns exactly count bytes starting at the physical address addr.
// Short reads that make progress are retried. A read that errors reports
// Count -1 and the OS code; one that stalls with no progress left reports
// the bytes accumulated so far.
func (a *Accessor) Read(addr types.Maddr, count int64) ([]byte, *fault.Memread) {
	if count < 0 {
		return nil, fault.NewMemread(addr, -1, count, unix.EINVAL)
	}
	buf := make([]byte, count)
	var total int64
	for total < count {
		off, room, errno := a.locate(addr + types.Maddr(total))
		if errno != 0 {
			if total == 0 {
				return nil, fault.NewMemread(addr, -1, count, errno)
			}
			// Ran off the end of the mapped regions mid read.
			return nil, fault.NewMemread(addr, total, count, 0)
		}
		a.cursor = off
		chunk := min(count-total, room)
		n, err := a.store.ReadAt(buf[total:total+chunk], a.cursor)
		if err != nil {
			return nil, fault.NewMemread(addr, -1, count, storeErrno(err))
		}
		if n == 0 {
			return nil, fault.NewMemread(addr, total, count, 0)
		}
		total += int64(n)
		a.cursor += int64(n)
	}
	log.WithFields(log.Fields{"addr": addr.String(), "count": count}).Debug("read image bytes")
	return buf, nil
}

// Read64 returns the little endian 64 bit value at addr. Paging
// structure entries are read at this width.
func (a *Accessor) Read64(addr types.Maddr) (uint64, *fault.Memread) {
	buf, flt := a.Read(addr, 8)
	if flt != nil {
		return 0, flt
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func storeErrno(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
