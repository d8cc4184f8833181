package types

import "fmt"

// Maddr is a physical (machine) address inside the captured image.
type Maddr uint64

// Vaddr is a guest virtual address. The only sanctioned way to turn a
// Vaddr into a Maddr is a pagetable walk.
type Vaddr uint64

func (a Maddr) String() string {
	return fmt.Sprintf("0x%016x", uint64(a))
}

func (v Vaddr) String() string {
	return fmt.Sprintf("0x%016x", uint64(v))
}
