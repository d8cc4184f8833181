// Package vm reads guest virtual memory by combining the physical
// accessor with a pagetable walker and the paging root a guest was
// running on when the image was captured.
package vm

import (
	"bytes"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/memory"
	"github.com/kaixuanlive/xen-crashdump-analyser/pagetable"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

const pageSize = 1 << 12

// View is one guest's virtual memory.
type View struct {
	Mem    *memory.Accessor
	Walker pagetable.Walker
	Cr3    uint64
}

func NewView(mem *memory.Accessor, layout pagetable.Layout, cr3 uint64) *View {
	return &View{Mem: mem, Walker: pagetable.NewWalker(mem, layout), Cr3: cr3}
}

// Translate resolves va to the physical address backing it.
func (v *View) Translate(va types.Vaddr) (types.Maddr, *fault.Pagefault) {
	return v.Walker.Walk(v.Cr3, va)
}

func pageRoom(va types.Vaddr) int64 {
	return pageSize - int64(uint64(va)&(pageSize-1))
}

// Read returns count bytes of guest virtual memory starting at va. Every
// page is translated on its own, so runs crossing page boundaries work
// even when the backing frames are scattered. The read is all or nothing:
// a fault on any page loses the bytes gathered before it.
func (v *View) Read(va types.Vaddr, count int64) ([]byte, fault.Fault) {
	if count < 0 {
		return nil, fault.NewValidation(va, "negative read size")
	}
	buf := make([]byte, 0, count)
	for count > 0 {
		chunk := min(count, pageRoom(va))
		maddr, pf := v.Translate(va)
		if pf != nil {
			return nil, pf
		}
		raw, rf := v.Mem.Read(maddr, chunk)
		if rf != nil {
			return nil, rf
		}
		buf = append(buf, raw...)
		va += types.Vaddr(chunk)
		count -= chunk
	}
	return buf, nil
}

// ReadString reads a NUL terminated string from va, giving up after max
// bytes. The terminator is not part of the result.
func (v *View) ReadString(va types.Vaddr, max int64) (string, fault.Fault) {
	var out []byte
	for int64(len(out)) < max {
		chunk := min(max-int64(len(out)), pageRoom(va))
		raw, flt := v.Read(va, chunk)
		if flt != nil {
			return "", flt
		}
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			return string(append(out, raw[:i]...)), nil
		}
		out = append(out, raw...)
		va += types.Vaddr(chunk)
	}
	return string(out), nil
}

// ReadPointer reads one guest pointer, sized for the paging layout.
func (v *View) ReadPointer(va types.Vaddr) (types.Vaddr, fault.Fault) {
	switch v.Walker.Layout.PointerSize {
	case 8:
		val, flt := v.ReadUint64(va)
		return types.Vaddr(val), flt
	case 4:
		val, flt := v.ReadUint32(va)
		return types.Vaddr(val), flt
	}
	return 0, fault.NewValidation(va, "layout has no pointer size")
}
