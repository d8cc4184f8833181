// Package symbols names addresses inside the crashed hypervisor. Tables
// come from the build's ELF or from a System.map style listing; lookups
// never fail the analysis, an unnamed address just stays a number.
package symbols

import (
	"fmt"
	"sort"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// Type partitions symbols the way ELF symbol tables do.
type Type uint

const (
	Unknown Type = iota
	Func
	Data
	File
	Section
	ThreadLocal
)

// Symbol is one named address. Size is zero when the source format does
// not carry sizes, as System.map listings do not.
type Symbol struct {
	Addr types.Vaddr
	Size uint64
	Name string
	Type Type
}

// Table is an address sorted symbol collection.
type Table struct {
	syms   []Symbol
	byName map[string]int
}

func newTable(syms []Symbol) *Table {
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Addr < syms[j].Addr })
	byName := make(map[string]int, len(syms))
	for i, sym := range syms {
		if _, dup := byName[sym.Name]; !dup {
			byName[sym.Name] = i
		}
	}
	return &Table{syms: syms, byName: byName}
}

func (t *Table) Len() int { return len(t.syms) }

// Lookup finds a symbol by name. The lowest occurrence wins when a name
// appears more than once, as static functions from different units can.
func (t *Table) Lookup(name string) (Symbol, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.syms[i], true
}

// Locate finds the symbol covering va: the nearest one at or below it.
// Addresses ahead of the first symbol have no cover.
func (t *Table) Locate(va types.Vaddr) (Symbol, uint64, bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > va })
	if i == 0 {
		return Symbol{}, 0, false
	}
	sym := t.syms[i-1]
	return sym, uint64(va - sym.Addr), true
}

// Format renders va as "name+0x12" against the table, or "" when the
// table has nothing at or below it.
func (t *Table) Format(va types.Vaddr) string {
	sym, off, ok := t.Locate(va)
	if !ok {
		return ""
	}
	if off == 0 {
		return sym.Name
	}
	return fmt.Sprintf("%s+0x%x", sym.Name, off)
}
