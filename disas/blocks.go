package disas

import (
	"sort"

	"github.com/bnagy/gapstone"
	"github.com/go-errors/errors"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// branches end a basic block.
var branches = map[uint]bool{
	gapstone.X86_INS_JL:    true,
	gapstone.X86_INS_JLE:   true,
	gapstone.X86_INS_JA:    true,
	gapstone.X86_INS_JAE:   true,
	gapstone.X86_INS_JB:    true,
	gapstone.X86_INS_JBE:   true,
	gapstone.X86_INS_JCXZ:  true,
	gapstone.X86_INS_JECXZ: true,
	gapstone.X86_INS_JO:    true,
	gapstone.X86_INS_JNO:   true,
	gapstone.X86_INS_JS:    true,
	gapstone.X86_INS_JNS:   true,
	gapstone.X86_INS_JP:    true,
	gapstone.X86_INS_JNP:   true,
	gapstone.X86_INS_JE:    true,
	gapstone.X86_INS_JNE:   true,
	gapstone.X86_INS_JG:    true,
	gapstone.X86_INS_JGE:   true,
	gapstone.X86_INS_CALL:  true,
	gapstone.X86_INS_LCALL: true,
	gapstone.X86_INS_JMP:   true,
	gapstone.X86_INS_LJMP:  true,
}

// Block is one basic block inside a code window. Start and End are the
// addresses of its first and last instruction.
type Block struct {
	Start, End types.Vaddr
}

// Blocks splits the window into basic blocks: straight line runs
// separated by branches and branch targets. Targets pointing outside the
// window are ignored.
func (w *CodeWindow) Blocks(mode int) ([]Block, *errors.Error) {
	instrs, err := w.disasm(mode, true)
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 {
		return nil, nil
	}
	starts := blockStarts(instrs)
	var blocks []Block
	cur := types.Vaddr(instrs[0].Address)
	for i, instr := range instrs {
		addr := types.Vaddr(instr.Address)
		if starts[addr] {
			cur = addr
		}
		next := types.Vaddr(instr.Address + instr.Size)
		if i == len(instrs)-1 || starts[next] {
			blocks = append(blocks, Block{Start: cur, End: addr})
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	return blocks, nil
}

func blockStarts(instrs []gapstone.Instruction) map[types.Vaddr]bool {
	starts := map[types.Vaddr]bool{types.Vaddr(instrs[0].Address): true}
	for _, instr := range instrs {
		if !branches[instr.Id] {
			continue
		}
		// A branch opens blocks at its target and right behind itself.
		for _, op := range instr.X86.Operands {
			if op.Type == gapstone.X86_OP_IMM {
				starts[types.Vaddr(op.Imm)] = true
			}
		}
		starts[types.Vaddr(instr.Address+instr.Size)] = true
	}
	return starts
}
