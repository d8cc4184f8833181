package pagetable

import (
	log "github.com/sirupsen/logrus"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// Mem is the slice of the memory accessor a walk needs: one table entry
// read per visited level.
type Mem interface {
	Read64(addr types.Maddr) (uint64, *fault.Memread)
}

// Walker resolves virtual addresses against paging hierarchies of one
// layout. Walks are sequential and share no state, so one walker serves
// any number of lookups.
type Walker struct {
	Mem    Mem
	Layout Layout
}

func NewWalker(mem Mem, layout Layout) Walker {
	return Walker{Mem: mem, Layout: layout}
}

// Step records one visited level of a walk, for diagnostics around a
// faulting translation. The rejecting entry, if any, is the last step.
type Step struct {
	Level int
	Name  string
	Base  types.Maddr
	Slot  types.Maddr
	Entry Entry
}

// Walk resolves va against the hierarchy rooted at cr3. Table reads that
// fail and entries that reject the walk both surface as a Pagefault
// naming the level; the caller's unit of work is the translation, not the
// table I/O behind it. A failed walk is terminal, the caller decides
// whether the address matters.
func (w Walker) Walk(cr3 uint64, va types.Vaddr) (types.Maddr, *fault.Pagefault) {
	maddr, _, flt := w.walk(cr3, va, nil)
	return maddr, flt
}

// Trace is Walk with every visited level recorded, resolved or not.
func (w Walker) Trace(cr3 uint64, va types.Vaddr) ([]Step, types.Maddr, *fault.Pagefault) {
	steps := make([]Step, 0, len(w.Layout.Levels))
	maddr, steps, flt := w.walk(cr3, va, steps)
	return steps, maddr, flt
}

func (w Walker) walk(cr3 uint64, va types.Vaddr, steps []Step) (types.Maddr, []Step, *fault.Pagefault) {
	record := steps != nil
	base := types.Maddr(cr3 & w.Layout.RootMask)
	for i := range w.Layout.Levels {
		level := &w.Layout.Levels[i]
		slot := base + level.Slot(va)
		raw, rdflt := w.Mem.Read64(slot)
		if rdflt != nil {
			log.WithFields(rdflt.Fields()).WithField("table", level.Name).Debug("table entry unreadable")
			return 0, steps, fault.NewPagefault(va, cr3, level.Number)
		}
		entry := Entry(raw)
		if record {
			steps = append(steps, Step{Level: level.Number, Name: level.Name, Base: base, Slot: slot, Entry: entry})
		}
		if !entry.Present() {
			return 0, steps, fault.NewPagefault(va, cr3, level.Number)
		}
		if i == len(w.Layout.Levels)-1 || (level.LargePage && entry.PageSize()) {
			span := level.Span()
			return entry.FrameFor(span) + types.Maddr(uint64(va)&(span-1)), steps, nil
		}
		base = entry.Frame()
	}
	// Only reachable with a layout carrying no levels.
	return 0, steps, fault.NewPagefault(va, cr3, 0)
}
