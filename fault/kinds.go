package fault

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

func hex(val uint64) string {
	return fmt.Sprintf("0x%x", val)
}

// Memseek reports a failure to position the store cursor on a physical
// address. Offset is the store offset derived from the relevant memory
// region, or -1 when no region maps the address.
type Memseek struct {
	Addr   types.Maddr
	Offset int64
}

func NewMemseek(addr types.Maddr, offset int64) *Memseek {
	return &Memseek{Addr: addr, Offset: offset}
}

func (e *Memseek) Error() string {
	return fmt.Sprintf("[memseek] addr: %s, offset: %d", e.Addr, e.Offset)
}

func (e *Memseek) Label() string { return "memseek" }

// Outside64GB reports whether the failure is explained by the 64GiB
// ceiling of 32bit capture tooling.
func (e *Memseek) Outside64GB() bool {
	return e.Addr >= Limit64GB
}

func (e *Memseek) Fields() log.Fields {
	fields := log.Fields{"addr": e.Addr.String(), "offset": e.Offset}
	if e.Outside64GB() {
		fields["hint"] = "address beyond the 64GiB reach of 32bit dump tools"
	}
	return fields
}

// Memread reports a byte range read that did not complete. Count is the
// number of bytes read before the failure, or -1 when the read primitive
// itself errored, in which case Errno holds the OS code. Total is the
// number of bytes requested.
type Memread struct {
	Addr  types.Maddr
	Count int64
	Total int64
	Errno unix.Errno
}

func NewMemread(addr types.Maddr, count, total int64, errno unix.Errno) *Memread {
	return &Memread{Addr: addr, Count: count, Total: total, Errno: errno}
}

func (e *Memread) Error() string {
	if e.Count < 0 {
		return fmt.Sprintf("[memread] addr: %s, wanted %d bytes: %s", e.Addr, e.Total, e.Errno.Error())
	}
	return fmt.Sprintf("[memread] addr: %s, got %d of %d bytes", e.Addr, e.Count, e.Total)
}

func (e *Memread) Label() string { return "memread" }

// Outside64GB reports whether the requested span reaches the 64GiB ceiling
// of 32bit capture tooling. A truncated read at a high address is the same
// tooling limitation a failed seek there would be.
func (e *Memread) Outside64GB() bool {
	return e.Addr >= Limit64GB || e.Addr+types.Maddr(e.Total) > Limit64GB
}

func (e *Memread) Fields() log.Fields {
	fields := log.Fields{"addr": e.Addr.String(), "count": e.Count, "total": e.Total}
	if e.Count < 0 {
		fields["errno"] = int(e.Errno)
		fields["error"] = e.Errno.Error()
	}
	if e.Outside64GB() {
		fields["hint"] = "read reaches beyond the 64GiB reach of 32bit dump tools"
	}
	return fields
}

// Pagefault reports a pagetable walk that could not resolve a virtual
// address. Level names the paging level that rejected the walk, counted
// from the leaf up, and Cr3 is the paging root the walk started from.
type Pagefault struct {
	Vaddr types.Vaddr
	Cr3   uint64
	Level int
}

func NewPagefault(vaddr types.Vaddr, cr3 uint64, level int) *Pagefault {
	return &Pagefault{Vaddr: vaddr, Cr3: cr3, Level: level}
}

func (e *Pagefault) Error() string {
	return fmt.Sprintf("[pagefault] vaddr: %s, cr3: %s, level: %d", e.Vaddr, hex(e.Cr3), e.Level)
}

func (e *Pagefault) Label() string { return "pagefault" }

func (e *Pagefault) Fields() log.Fields {
	return log.Fields{"vaddr": e.Vaddr.String(), "cr3": hex(e.Cr3), "level": e.Level}
}

// Validation reports a resolved virtual address that failed a sanity check
// imposed by whoever requested the lookup.
type Validation struct {
	Vaddr  types.Vaddr
	Reason string
}

func NewValidation(vaddr types.Vaddr, reason string) *Validation {
	return &Validation{Vaddr: vaddr, Reason: reason}
}

func (e *Validation) Error() string {
	return fmt.Sprintf("[validate] vaddr: %s: %s", e.Vaddr, e.Reason)
}

func (e *Validation) Label() string { return "validate" }

func (e *Validation) Fields() log.Fields {
	return log.Fields{"vaddr": e.Vaddr.String(), "reason": e.Reason}
}

// Filewrite reports a failed write to an output stream. The stream itself
// belongs to the report writer; the fault carries only the OS code and, at
// log time, the name of the file being written.
type Filewrite struct {
	Errno unix.Errno
}

func NewFilewrite(errno unix.Errno) *Filewrite {
	return &Filewrite{Errno: errno}
}

func (e *Filewrite) Error() string {
	return fmt.Sprintf("[filewrite] %s", e.Errno.Error())
}

func (e *Filewrite) Label() string { return "filewrite" }

func (e *Filewrite) Fields() log.Fields {
	return log.Fields{"errno": int(e.Errno), "error": e.Errno.Error()}
}

// LogFile logs the failure naming the file being written.
func (e *Filewrite) LogFile(file string) {
	log.WithFields(e.Fields()).WithField("file", file).Error(e.Error())
}

var (
	_ Fault = (*Memseek)(nil)
	_ Fault = (*Memread)(nil)
	_ Fault = (*Pagefault)(nil)
	_ Fault = (*Validation)(nil)
	_ Fault = (*Filewrite)(nil)
)
