package symbols

import (
	"debug/elf"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

func typeOf(info uint8) Type {
	switch elf.ST_TYPE(info) {
	case elf.STT_FUNC:
		return Func
	case elf.STT_OBJECT, elf.STT_COMMON:
		return Data
	case elf.STT_FILE:
		return File
	case elf.STT_SECTION:
		return Section
	case elf.STT_TLS:
		return ThreadLocal
	}
	return Unknown
}

// LoadELF reads the symbol table out of a hypervisor build, such as a
// xen-syms binary. File and section markers carry no locatable address
// and are dropped.
func LoadELF(path string) (*Table, *errors.Error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer f.Close()
	elfsyms, err := f.Symbols()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	syms := make([]Symbol, 0, len(elfsyms))
	for _, sym := range elfsyms {
		typ := typeOf(sym.Info)
		if sym.Name == "" || typ == File || typ == Section {
			continue
		}
		syms = append(syms, Symbol{
			Addr: types.Vaddr(sym.Value),
			Size: sym.Size,
			Name: sym.Name,
			Type: typ,
		})
	}
	log.WithFields(log.Fields{"path": path, "symbols": len(syms)}).Debug("loaded ELF symbol table")
	return newTable(syms), nil
}
