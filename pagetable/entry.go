// Package pagetable resolves virtual addresses by walking hardware paging
// structures found inside a crash image. The layouts describe the x86
// geometries as data, so the walker itself is geometry free.
package pagetable

import (
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// Entry is the raw bits of one paging structure slot.
type Entry uint64

const (
	flagPresent  Entry = 1 << 0
	flagWritable Entry = 1 << 1
	flagPageSize Entry = 1 << 7
	flagNoExec   Entry = 1 << 63

	// Bits 12-51 hold the target frame for entries referencing another
	// table or a 4KiB page.
	frameMask Entry = 0x000ffffffffff000
)

func (e Entry) Present() bool  { return e&flagPresent != 0 }
func (e Entry) Writable() bool { return e&flagWritable != 0 }
func (e Entry) NoExec() bool   { return e&flagNoExec != 0 }

// PageSize reports the large page terminator bit. Only meaningful at
// levels whose layout allows large pages; at the leaf level bit 7 is PAT.
func (e Entry) PageSize() bool { return e&flagPageSize != 0 }

// Frame is the physical address of the next table down, or of the mapped
// page for a leaf entry.
func (e Entry) Frame() types.Maddr {
	return types.Maddr(e & frameMask)
}

// FrameFor is the physical base of the page mapped by a terminating entry
// spanning span bytes. For large pages the low frame bits below the span
// carry PAT and reserved state, not address.
func (e Entry) FrameFor(span uint64) types.Maddr {
	return types.Maddr(uint64(e&frameMask) &^ (span - 1))
}
