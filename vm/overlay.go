package vm

import (
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"

	"github.com/kaixuanlive/xen-crashdump-analyser/fault"
	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// ReadStruct fills *out with guest memory starting at va. The target must
// be a pointer to a fixed layout value: sized integers, floats, arrays
// and structs of those, matching the guest's layout byte for byte. Kinds
// with Go managed innards (pointers, slices, strings, maps) and host
// sized kinds are refused.
func (v *View) ReadStruct(va types.Vaddr, out any) fault.Fault {
	if out == nil {
		return fault.NewValidation(va, "overlay target is nil")
	}
	typ := reflect2.TypeOf(out).Type1()
	if typ.Kind() != reflect.Pointer {
		return fault.NewValidation(va, "overlay target must be a pointer")
	}
	if reflect2.PtrOf(out) == nil {
		return fault.NewValidation(va, "overlay target is a nil pointer")
	}
	elem := typ.Elem()
	if !fixedLayout(elem) {
		return fault.NewValidation(va, "overlay target is not plain data")
	}
	raw, flt := v.Read(va, int64(elem.Size()))
	if flt != nil {
		return flt
	}
	copy(unsafe.Slice((*byte)(reflect2.PtrOf(out)), elem.Size()), raw)
	return nil
}

func fixedLayout(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		return fixedLayout(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !fixedLayout(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}
