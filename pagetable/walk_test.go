package pagetable

import (
	"encoding/binary"
	"testing"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/internal/pattern"
	"github.com/kaixuanlive/xen-crashdump-analyser/memory"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// fakeMem serves table entries from a map and records every slot read.
// Slots missing from the map fail like table pages outside the capture;
// a rejecting entry needs an explicit zero.
type fakeMem struct {
	entries map[types.Maddr]uint64
	reads   []types.Maddr
}

func (m *fakeMem) Read64(addr types.Maddr) (uint64, *fault.Memread) {
	m.reads = append(m.reads, addr)
	val, ok := m.entries[addr]
	if !ok {
		return 0, fault.NewMemread(addr, -1, 8, unix.ENXIO)
	}
	return val, nil
}

func put64(img []byte, off int64, val uint64) {
	binary.LittleEndian.PutUint64(img[off:], val)
}

// buildLongModeImage lays out a small capture with a 4 level hierarchy:
// a 4KiB page, a 2MiB page, a 1GiB page, and a PT entry carrying the PAT
// bit. Pages 0x1000 to 0x4000 hold the tables, everything else keeps the
// pattern content.
func buildLongModeImage(t *testing.T) *memory.Accessor {
	t.Helper()
	img := pattern.Bytes(0, 0x10000)
	for _, page := range []int64{0x1000, 0x2000, 0x3000, 0x4000} {
		copy(img[page:page+0x1000], make([]byte, 0x1000))
	}
	present := uint64(flagPresent)
	large := uint64(flagPresent | flagPageSize)

	put64(img, 0x1000+0*8, 0x2000|present|uint64(flagWritable)) // PML4[0] -> PDPT
	put64(img, 0x2000+1*8, 0x3000|present)                      // PDPT[1] -> PD
	put64(img, 0x2000+2*8, 0x0|large)                           // PDPT[2] -> 1GiB page at 0
	put64(img, 0x3000+2*8, 0x4000|present)                      // PD[2] -> PT
	put64(img, 0x3000+3*8, 0x800000|large)                      // PD[3] -> 2MiB page
	put64(img, 0x4000+3*8, 0x5000|present|uint64(flagNoExec))   // PT[3] -> 4KiB page, NX
	put64(img, 0x4000+4*8, 0x6000|large)                        // PT[4], bit 7 is PAT here

	acc, err := memory.NewAccessor(memory.NewBufStore(img), nil)
	if err != nil {
		t.Fatalf("building accessor: %v", err)
	}
	return acc
}

func TestWalkResolves(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)

	va := types.Vaddr(1<<30 | 2<<21 | 3<<12 | 0x123)
	maddr, flt := w.Walk(0x1000, va)
	if flt != nil {
		t.Fatalf("walk faulted: %v", flt)
	}
	if maddr != 0x5123 {
		t.Fatalf("resolved to %s, want 0x5123", maddr)
	}
}

func TestWalkHugePages(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)

	va := types.Vaddr(1<<30 | 3<<21 | 0x54321)
	maddr, flt := w.Walk(0x1000, va)
	if flt != nil {
		t.Fatalf("2MiB walk faulted: %v", flt)
	}
	if maddr != 0x854321 {
		t.Fatalf("2MiB page resolved to %s, want 0x854321", maddr)
	}

	va = types.Vaddr(2<<30 | 0x123)
	maddr, flt = w.Walk(0x1000, va)
	if flt != nil {
		t.Fatalf("1GiB walk faulted: %v", flt)
	}
	if maddr != 0x123 {
		t.Fatalf("1GiB page resolved to %s, want 0x123", maddr)
	}
}

func TestWalkLeafPATBit(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)

	// Bit 7 at the leaf is PAT, not a page size, and must not widen the
	// offset span.
	va := types.Vaddr(1<<30 | 2<<21 | 4<<12 | 0x55)
	maddr, flt := w.Walk(0x1000, va)
	if flt != nil {
		t.Fatalf("walk faulted: %v", flt)
	}
	if maddr != 0x6055 {
		t.Fatalf("resolved to %s, want 0x6055", maddr)
	}
}

func TestWalkNonPresentStops(t *testing.T) {
	mem := &fakeMem{entries: map[types.Maddr]uint64{
		0x1000: 0x2000 | uint64(flagPresent),
		0x2000: 0, // PDPT entry explicitly not present
	}}
	w := NewWalker(mem, LongMode)

	_, flt := w.Walk(0x1000, 0)
	if flt == nil {
		t.Fatal("walk through a non present entry succeeded")
	}
	if flt.Level != 3 {
		t.Fatalf("fault at level %d, want 3", flt.Level)
	}
	if len(mem.reads) != 2 {
		t.Fatalf("%d table reads after the rejecting entry, want 2", len(mem.reads))
	}
}

func TestWalkWrapsReadFaults(t *testing.T) {
	mem := &fakeMem{entries: map[types.Maddr]uint64{
		0x1000: 0x2000 | uint64(flagPresent),
		0x2000: 0x3000 | uint64(flagPresent),
		// PD table at 0x3000 is outside the capture.
	}}
	w := NewWalker(mem, LongMode)

	_, flt := w.Walk(0x1000, 0)
	if flt == nil {
		t.Fatal("walk through an unreadable table succeeded")
	}
	if flt.Label() != "pagefault" {
		t.Fatalf("mid walk read failure leaked as %q", flt.Label())
	}
	if flt.Level != 2 {
		t.Fatalf("fault at level %d, want 2", flt.Level)
	}
}

func TestWalkDeterministic(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)
	va := types.Vaddr(1<<30 | 2<<21 | 3<<12 | 0x123)

	first, flt1 := w.Walk(0x1000, va)
	second, flt2 := w.Walk(0x1000, va)
	if flt1 != nil || flt2 != nil {
		t.Fatalf("walks faulted: %v, %v", flt1, flt2)
	}
	if first != second {
		t.Fatalf("same walk resolved to %s then %s", first, second)
	}

	bad := types.Vaddr(7 << 39)
	_, flt1 = w.Walk(0x1000, bad)
	_, flt2 = w.Walk(0x1000, bad)
	if flt1 == nil || flt2 == nil || flt1.Level != flt2.Level {
		t.Fatalf("faulting walk not stable: %v, %v", flt1, flt2)
	}
}

func TestWalkMasksRootBits(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)
	va := types.Vaddr(1<<30 | 2<<21 | 3<<12 | 0x123)

	// PWT and PCD riding along in the root register.
	maddr, flt := w.Walk(0x1000|0x18, va)
	if flt != nil {
		t.Fatalf("walk faulted: %v", flt)
	}
	if maddr != 0x5123 {
		t.Fatalf("resolved to %s, want 0x5123", maddr)
	}
}

func buildPAEImage(t *testing.T) *memory.Accessor {
	t.Helper()
	img := pattern.Bytes(0, 0x8000)
	copy(img[0x100:0x120], make([]byte, 0x20)) // PDPT, 4 entries
	for _, page := range []int64{0x1000, 0x2000} {
		copy(img[page:page+0x1000], make([]byte, 0x1000))
	}
	present := uint64(flagPresent)

	put64(img, 0x100+2*8, 0x1000|present)                         // PDPT[2] -> PD
	put64(img, 0x1000+1*8, 0x2000|present)                        // PD[1] -> PT
	put64(img, 0x1000+3*8, 0x400000|present|uint64(flagPageSize)) // PD[3] -> 2MiB page
	put64(img, 0x2000+5*8, 0x3000|present)                        // PT[5] -> 4KiB page

	acc, err := memory.NewAccessor(memory.NewBufStore(img), nil)
	if err != nil {
		t.Fatalf("building accessor: %v", err)
	}
	return acc
}

func TestPAEWalk(t *testing.T) {
	w := NewWalker(buildPAEImage(t), PAE)

	// The PAE root register keeps control bits in what long mode treats
	// as address bits.
	cr3 := uint64(0x100 | 0x1f)

	va := types.Vaddr(2<<30 | 1<<21 | 5<<12 | 0x77)
	maddr, flt := w.Walk(cr3, va)
	if flt != nil {
		t.Fatalf("walk faulted: %v", flt)
	}
	if maddr != 0x3077 {
		t.Fatalf("resolved to %s, want 0x3077", maddr)
	}

	va = types.Vaddr(2<<30 | 3<<21 | 0x1234)
	maddr, flt = w.Walk(cr3, va)
	if flt != nil {
		t.Fatalf("2MiB walk faulted: %v", flt)
	}
	if maddr != 0x401234 {
		t.Fatalf("2MiB page resolved to %s, want 0x401234", maddr)
	}

	_, flt = w.Walk(cr3, 0x123)
	if flt == nil || flt.Level != 3 {
		t.Fatalf("empty PDPT slot reported as %v", flt)
	}
}

func TestTrace(t *testing.T) {
	w := NewWalker(buildLongModeImage(t), LongMode)

	va := types.Vaddr(1<<30 | 2<<21 | 3<<12 | 0x123)
	steps, maddr, flt := w.Trace(0x1000, va)
	if flt != nil {
		t.Fatalf("trace faulted: %v", flt)
	}
	if maddr != 0x5123 {
		t.Fatalf("trace resolved to %s", maddr)
	}
	names := []string{"PML4", "PDPT", "PD", "PT"}
	if len(steps) != len(names) {
		t.Fatalf("recorded %d steps, want %d", len(steps), len(names))
	}
	for i, step := range steps {
		if step.Name != names[i] {
			t.Errorf("step %d visited %s, want %s", i, step.Name, names[i])
		}
		if !step.Entry.Present() {
			t.Errorf("step %d recorded a non present entry", i)
		}
	}
	if steps[3].Slot != 0x4000+3*8 {
		t.Errorf("leaf slot recorded as %s", steps[3].Slot)
	}
	if !steps[0].Entry.Writable() || steps[1].Entry.Writable() {
		t.Error("writable bit misread from recorded entries")
	}
	if !steps[3].Entry.NoExec() || steps[2].Entry.NoExec() {
		t.Error("no exec bit misread from recorded entries")
	}

	steps, _, flt = w.Trace(0x1000, types.Vaddr(3<<30))
	if flt == nil {
		t.Fatal("trace through an empty PDPT slot succeeded")
	}
	if len(steps) != 2 || steps[1].Entry.Present() {
		t.Fatalf("rejecting trace recorded %+v", steps)
	}
}
