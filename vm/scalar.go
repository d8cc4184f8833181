package vm

import (
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// ReadScalar reads one little endian unsigned scalar from guest memory.
func ReadScalar[T constraints.Unsigned](v *View, va types.Vaddr) (T, fault.Fault) {
	var val T
	raw, flt := v.Read(va, int64(unsafe.Sizeof(val)))
	if flt != nil {
		return 0, flt
	}
	for i := len(raw) - 1; i >= 0; i-- {
		val = val<<8 | T(raw[i])
	}
	return val, nil
}

func (v *View) ReadUint16(va types.Vaddr) (uint16, fault.Fault) {
	return ReadScalar[uint16](v, va)
}

func (v *View) ReadUint32(va types.Vaddr) (uint32, fault.Fault) {
	return ReadScalar[uint32](v, va)
}

func (v *View) ReadUint64(va types.Vaddr) (uint64, fault.Fault) {
	return ReadScalar[uint64](v, va)
}
