package pagetable

import (
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

const entrySize = 8

// Level describes one paging level: where its table index lives inside a
// virtual address, and whether an entry there may terminate the walk with
// a large page.
type Level struct {
	Name      string
	Number    int
	Shift     uint
	IndexBits uint
	LargePage bool
}

// Slot is the byte offset of the entry for va inside this level's table.
func (l *Level) Slot(va types.Vaddr) types.Maddr {
	index := (uint64(va) >> l.Shift) & (1<<l.IndexBits - 1)
	return types.Maddr(index * entrySize)
}

// Span is the number of bytes one entry at this level maps.
func (l *Level) Span() uint64 {
	return 1 << l.Shift
}

// Layout is one paging geometry, levels ordered root first. RootMask
// strips the control bits a root register carries alongside the table
// address.
type Layout struct {
	Name        string
	PointerSize int64
	RootMask    uint64
	Levels      []Level
}

// Leaf is the level a full depth walk ends on.
func (l *Layout) Leaf() *Level {
	return &l.Levels[len(l.Levels)-1]
}

// LongMode is 4 level x86-64 paging: 4KiB base pages, 2MiB pages at the
// page directory and 1GiB pages at the PDPT.
var LongMode = Layout{
	Name:        "long mode",
	PointerSize: 8,
	RootMask:    uint64(frameMask),
	Levels: []Level{
		{Name: "PML4", Number: 4, Shift: 39, IndexBits: 9},
		{Name: "PDPT", Number: 3, Shift: 30, IndexBits: 9, LargePage: true},
		{Name: "PD", Number: 2, Shift: 21, IndexBits: 9, LargePage: true},
		{Name: "PT", Number: 1, Shift: 12, IndexBits: 9},
	},
}

// PAE is the 3 level geometry 32bit PAE kernels use. The root register
// holds a 32 byte aligned 4 entry PDPT; 2MiB pages terminate at the page
// directory and the PDPT never does.
var PAE = Layout{
	Name:        "PAE",
	PointerSize: 4,
	RootMask:    ^uint64(0x1f),
	Levels: []Level{
		{Name: "PDPT", Number: 3, Shift: 30, IndexBits: 2},
		{Name: "PD", Number: 2, Shift: 21, IndexBits: 9, LargePage: true},
		{Name: "PT", Number: 1, Shift: 12, IndexBits: 9},
	},
}
