package qglib

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

var utf16StringType = reflect.TypeOf(UTF16String(nil))

func unsupportedOutput(v *Value, out reflect.Value) error {
	return errors.Errorf("could not store value of type %s in Go type %s", v.typ, out.Type())
}

func unsupportedInput(v *Value, in reflect.Value) error {
	if !in.IsValid() {
		return errors.Errorf("could not store nil in value of type %s", v.typ)
	}
	return errors.Errorf("could not store Go type %s in value of type %s", in.Type(), v.typ)
}

// setNatural stores the payload in an interface typed out, converted to the
// Go type registered for the value type when there is one.
func setNatural(v *Value, out reflect.Value) error {
	natural := reflect.ValueOf(v.data)
	if !natural.IsValid() {
		out.Set(reflect.Zero(out.Type()))
		return nil
	}

	if goType := v.typ.naturalGoType(); goType != nil && natural.Type() != goType && natural.Type().ConvertibleTo(goType) {
		natural = natural.Convert(goType)
	}

	if !natural.Type().AssignableTo(out.Type()) {
		return unsupportedOutput(v, out)
	}
	out.Set(natural)
	return nil
}

func toInt64(data any) int64 {
	switch d := data.(type) {
	case bool:
		if d {
			return 1
		}
		return 0
	case int8:
		return int64(d)
	case uint8:
		return int64(d)
	case int32:
		return int64(d)
	case uint32:
		return int64(d)
	case int:
		return int64(d)
	case uint:
		return int64(d)
	case int64:
		return d
	case uint64:
		return int64(d)
	case float32:
		return int64(d)
	case float64:
		return int64(d)
	}
	return 0
}

func toUint64(data any) uint64 {
	switch d := data.(type) {
	case uint8:
		return uint64(d)
	case uint32:
		return uint64(d)
	case uint:
		return uint64(d)
	case uint64:
		return d
	case float32:
		return uint64(int64(d))
	case float64:
		return uint64(int64(d))
	}
	return uint64(toInt64(data))
}

func toFloat64(data any) float64 {
	switch d := data.(type) {
	case float32:
		return float64(d)
	case float64:
		return d
	case uint8, uint32, uint, uint64:
		return float64(toUint64(d))
	}
	return float64(toInt64(data))
}

func isUnsignedData(data any) bool {
	switch data.(type) {
	case uint8, uint32, uint, uint64:
		return true
	}
	return false
}

// storeSigned converts i to the storage type of kind the way a C cast would.
func storeSigned(kind Kind, i int64) any {
	switch kind {
	case KindBool:
		return i != 0
	case KindChar:
		return int8(i)
	case KindUChar:
		return uint8(i)
	case KindInt, KindEnum:
		return int32(i)
	case KindUInt, KindFlags:
		return uint32(i)
	case KindLong:
		return int(i)
	case KindULong:
		return uint(i)
	case KindInt64:
		return i
	case KindUInt64:
		return uint64(i)
	case KindFloat:
		return float32(i)
	case KindDouble:
		return float64(i)
	}
	return nil
}

func storeUnsigned(kind Kind, u uint64) any {
	switch kind {
	case KindBool:
		return u != 0
	case KindChar:
		return int8(u)
	case KindUChar:
		return uint8(u)
	case KindInt, KindEnum:
		return int32(u)
	case KindUInt, KindFlags:
		return uint32(u)
	case KindLong:
		return int(u)
	case KindULong:
		return uint(u)
	case KindInt64:
		return int64(u)
	case KindUInt64:
		return u
	case KindFloat:
		return float32(u)
	case KindDouble:
		return float64(u)
	}
	return nil
}

// convertNumeric converts numeric or boolean payload data to the storage type
// of kind.
func convertNumeric(kind Kind, data any) any {
	switch data.(type) {
	case float32, float64:
		f := toFloat64(data)
		switch kind {
		case KindFloat:
			return float32(f)
		case KindDouble:
			return f
		case KindBool:
			return f != 0
		}
		return storeSigned(kind, int64(f))
	}
	if isUnsignedData(data) {
		return storeUnsigned(kind, toUint64(data))
	}
	return storeSigned(kind, toInt64(data))
}

var boolVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		if in.Kind() != reflect.Bool {
			return unsupportedInput(v, in)
		}
		v.data = in.Bool()
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		switch out.Kind() {
		case reflect.Bool:
			out.SetBool(v.data.(bool))
		case reflect.Interface:
			return setNatural(v, out)
		default:
			return unsupportedOutput(v, out)
		}
		return nil
	},
}

// integerVTable serves every integer fundamental, enums and flags included.
// The storage type follows the kind of the value type.
var integerVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		switch in.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			v.data = storeSigned(v.typ.Kind(), in.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			v.data = storeUnsigned(v.typ.Kind(), in.Uint())
		default:
			return unsupportedInput(v, in)
		}
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		switch out.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.SetInt(toInt64(v.data))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(toUint64(v.data))
		case reflect.Interface:
			return setNatural(v, out)
		default:
			return unsupportedOutput(v, out)
		}
		return nil
	},
}

var floatVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		switch in.Kind() {
		case reflect.Float32, reflect.Float64:
			v.data = convertNumeric(v.typ.Kind(), in.Float())
		default:
			return unsupportedInput(v, in)
		}
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		switch out.Kind() {
		case reflect.Float32, reflect.Float64:
			out.SetFloat(toFloat64(v.data))
		case reflect.Interface:
			return setNatural(v, out)
		default:
			return unsupportedOutput(v, out)
		}
		return nil
	},
}

var stringVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		if in.IsValid() && in.Type() == utf16StringType {
			decoded, err := in.Interface().(UTF16String).Decode()
			if err != nil {
				return errors.Wrap(err, "could not decode UTF-16 string")
			}
			v.data = decoded
			return nil
		}
		if in.Kind() != reflect.String {
			return unsupportedInput(v, in)
		}
		v.data = in.String()
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		if out.Type() == utf16StringType {
			encoded, err := NewUTF16String(v.data.(string))
			if err != nil {
				return errors.Wrap(err, "could not encode UTF-16 string")
			}
			out.Set(reflect.ValueOf(encoded))
			return nil
		}
		switch out.Kind() {
		case reflect.String:
			out.SetString(v.data.(string))
		case reflect.Interface:
			return setNatural(v, out)
		default:
			return unsupportedOutput(v, out)
		}
		return nil
	},
}

var pointerVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		switch in.Kind() {
		case reflect.UnsafePointer:
			v.data = in.UnsafePointer()
		case reflect.Uintptr:
			// Addresses given as uintptr are foreign, the GC does not track
			// them, so they stay integers.
			v.data = uintptr(in.Uint())
		default:
			if isNilNative(in) {
				v.data = unsafe.Pointer(nil)
				return nil
			}
			return unsupportedInput(v, in)
		}
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		switch out.Kind() {
		case reflect.UnsafePointer:
			p, ok := v.data.(unsafe.Pointer)
			if !ok {
				return errors.Errorf("value of type %s holds the foreign address %#x, get it as uintptr", v.typ, v.data)
			}
			out.SetPointer(p)
		case reflect.Uintptr:
			switch p := v.data.(type) {
			case unsafe.Pointer:
				out.SetUint(uint64(uintptr(p)))
			case uintptr:
				out.SetUint(uint64(p))
			}
		case reflect.Interface:
			return setNatural(v, out)
		default:
			return unsupportedOutput(v, out)
		}
		return nil
	},
}

var boxedVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		if isNilNative(in) {
			v.data = nil
			return nil
		}
		goType := v.typ.naturalGoType()
		if goType != nil && !in.Type().AssignableTo(goType) {
			return unsupportedInput(v, in)
		}
		v.data = v.typ.node.boxedCopy(in.Interface())
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		if v.data == nil {
			out.Set(reflect.Zero(out.Type()))
			return nil
		}
		natural := reflect.ValueOf(v.data)
		if !natural.Type().AssignableTo(out.Type()) {
			return unsupportedOutput(v, out)
		}
		out.Set(natural)
		return nil
	},
}

var paramVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		if isNilNative(in) {
			v.data = (*ParamSpec)(nil)
			return nil
		}
		if in.Type() != paramSpecType {
			return unsupportedInput(v, in)
		}
		v.data = in.Interface().(*ParamSpec)
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		if !paramSpecType.AssignableTo(out.Type()) {
			return unsupportedOutput(v, out)
		}
		out.Set(reflect.ValueOf(v.data))
		return nil
	},
}

var objectVTable = ValueVTable{
	Set: func(v *Value, in reflect.Value) error {
		if isNilNative(in) {
			v.setObject(nil)
			return nil
		}
		objectLike, ok := in.Interface().(ObjectLike)
		if !ok {
			return unsupportedInput(v, in)
		}
		obj := objectLike.AsObject()
		if obj != nil && !obj.Type().IsA(v.typ) {
			return InvalidTypeError{Requested: obj.Type(), Held: v.typ}
		}
		v.setObject(obj)
		return nil
	},
	Get: func(v *Value, out reflect.Value) error {
		obj := v.data.(*Object)
		if out.Type() == objectPtrType {
			out.Set(reflect.ValueOf(obj))
			return nil
		}
		if obj == nil {
			out.Set(reflect.Zero(out.Type()))
			return nil
		}
		if wrapper := obj.Wrapper(); wrapper != nil && reflect.TypeOf(wrapper).AssignableTo(out.Type()) {
			out.Set(reflect.ValueOf(wrapper))
			return nil
		}
		if objectPtrType.AssignableTo(out.Type()) {
			out.Set(reflect.ValueOf(obj))
			return nil
		}
		return unsupportedOutput(v, out)
	},
}

func (e *engine) registerFundamentalVTables() {
	vtables := map[Kind]ValueVTable{
		KindBool:    boolVTable,
		KindChar:    integerVTable,
		KindUChar:   integerVTable,
		KindInt:     integerVTable,
		KindUInt:    integerVTable,
		KindLong:    integerVTable,
		KindULong:   integerVTable,
		KindInt64:   integerVTable,
		KindUInt64:  integerVTable,
		KindEnum:    integerVTable,
		KindFlags:   integerVTable,
		KindFloat:   floatVTable,
		KindDouble:  floatVTable,
		KindString:  stringVTable,
		KindPointer: pointerVTable,
		KindBoxed:   boxedVTable,
		KindParam:   paramVTable,
		KindObject:  objectVTable,
	}
	for kind, vtable := range vtables {
		e.vtables.register(e.FundamentalType(kind), vtable)
	}
}
