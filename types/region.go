package types

// MemRegion maps a contiguous run of physical memory onto the flat backing
// store. Start is the first physical address of the run, Size its byte
// length and Offset the store offset holding the first byte. Captures built
// by packing several RAM ranges back to back get one region per range.
type MemRegion struct {
	Start  Maddr
	Size   uint64
	Offset int64
}

func NewMemRegion(start Maddr, size uint64, offset int64) *MemRegion {
	return &MemRegion{Start: start, Size: size, Offset: offset}
}

func (r *MemRegion) Contains(addr Maddr) bool {
	return r.Start <= addr && addr-r.Start < Maddr(r.Size)
}

// End is the last address inside the region. Regions are never empty.
func (r *MemRegion) End() Maddr {
	return r.Start + Maddr(r.Size) - 1
}

// StoreOffset converts addr into its offset in the backing store. Only
// meaningful when Contains(addr) holds.
func (r *MemRegion) StoreOffset(addr Maddr) int64 {
	return r.Offset + int64(addr-r.Start)
}

func (r *MemRegion) Range() Range {
	return NewRange(uint64(r.Start), uint64(r.End()))
}
