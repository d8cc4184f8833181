// Package disas renders the guest code around a faulting instruction
// pointer: a bracketed hex window plus a capstone listing of the last
// instructions the crashed CPU saw.
package disas

import (
	"fmt"
	"strings"

	"github.com/bnagy/gapstone"
	"github.com/go-errors/errors"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
	"github.com/kaixuanlive/xen-crashdump-analyser/vm"
)

// Mode64 and Mode32 pick the capstone decode mode: long mode guests use
// Mode64, PAE guests Mode32.
const (
	Mode64 = gapstone.CS_MODE_64
	Mode32 = gapstone.CS_MODE_32
)

// CodeWindow is a run of guest code bytes around one focus address,
// usually the instruction pointer captured at crash time.
type CodeWindow struct {
	Start types.Vaddr
	Focus types.Vaddr
	Code  []byte
}

// Window reads the before bytes preceding va and the after bytes
// following it through the view. The focus byte itself is always
// included.
func Window(v *vm.View, va types.Vaddr, before, after int64) (*CodeWindow, fault.Fault) {
	if before < 0 || after < 0 {
		return nil, fault.NewValidation(va, "negative window span")
	}
	start := va - types.Vaddr(before)
	code, flt := v.Read(start, before+after+1)
	if flt != nil {
		return nil, flt
	}
	return &CodeWindow{Start: start, Focus: va, Code: code}, nil
}

// String renders the window as one hex line with the focus byte
// bracketed.
func (w *CodeWindow) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", w.Start)
	for i, c := range w.Code {
		if w.Start+types.Vaddr(i) == w.Focus {
			fmt.Fprintf(&b, " <%02x>", c)
		} else {
			fmt.Fprintf(&b, " %02x", c)
		}
	}
	return b.String()
}

func (w *CodeWindow) disasm(mode int, detail bool) ([]gapstone.Instruction, *errors.Error) {
	engine, err := gapstone.New(gapstone.CS_ARCH_X86, mode)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer engine.Close()
	if detail {
		if err := engine.SetOption(gapstone.CS_OPT_DETAIL, gapstone.CS_OPT_ON); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	}
	instrs, err := engine.Disasm(w.Code, uint64(w.Start), 0)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return instrs, nil
}

// Listing disassembles the window into one line per instruction. Bytes
// ahead of the focus may decode differently than the live CPU saw them;
// the listing is advisory, the hex line is the ground truth.
func (w *CodeWindow) Listing(mode int) ([]string, *errors.Error) {
	instrs, err := w.disasm(mode, false)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(instrs))
	for _, instr := range instrs {
		lines = append(lines, fmt.Sprintf("0x%x: %s %s", instr.Address, instr.Mnemonic, instr.OpStr))
	}
	return lines, nil
}
