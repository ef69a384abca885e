package qglib

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// Value is a container for a single value of any registered type. A Value
// must be initialized with a type before it can be used, the zero Value is
// uninitialized. Values are not safe for concurrent mutation.
type Value struct {
	typ  Type
	data any
}

func zeroData(kind Kind) any {
	switch kind {
	case KindBool:
		return false
	case KindChar:
		return int8(0)
	case KindUChar:
		return uint8(0)
	case KindInt:
		return int32(0)
	case KindUInt:
		return uint32(0)
	case KindLong:
		return int(0)
	case KindULong:
		return uint(0)
	case KindInt64:
		return int64(0)
	case KindUInt64:
		return uint64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindString:
		return ""
	case KindPointer:
		return unsafe.Pointer(nil)
	case KindEnum:
		return int32(0)
	case KindFlags:
		return uint32(0)
	case KindParam:
		return (*ParamSpec)(nil)
	case KindObject:
		return (*Object)(nil)
	}
	return nil
}

func copyData(t Type, data any) any {
	switch t.Kind() {
	case KindObject:
		if obj, ok := data.(*Object); ok && obj != nil {
			obj.Ref()
		}
	case KindBoxed:
		if data != nil && t.node.boxedCopy != nil {
			return t.node.boxedCopy(data)
		}
	}
	return data
}

func releaseData(t Type, data any) {
	if t.Kind() == KindObject {
		if obj, ok := data.(*Object); ok && obj != nil {
			obj.Unref()
		}
	}
}

func (e *engine) NewValue(t Type) *Value {
	v := &Value{}
	if err := v.Init(t); err != nil {
		e.logger.Warnf("could not create value: %v", err)
	}
	return v
}

// ValueOf returns a Value initialized to the dynamic type of x and holding x.
func (e *engine) ValueOf(x any) (*Value, error) {
	in := reflect.ValueOf(x)
	t := e.typeOfNative(in)
	if !t.IsValid() {
		return nil, UnregisteredTypeError{GoType: reflect.TypeOf(x)}
	}

	v := &Value{}
	if err := v.Init(t); err != nil {
		return nil, err
	}
	if err := v.SetData(in); err != nil {
		v.Unset()
		return nil, err
	}
	return v, nil
}

// Init (re)initializes the value to hold the zero value of t. A payload held
// before is released.
func (v *Value) Init(t Type) error {
	if !t.IsValueType() {
		return errors.Errorf("could not initialize value, type %s can not hold values", t)
	}
	v.Unset()
	v.typ = t
	v.data = zeroData(t.Kind())
	return nil
}

func (v *Value) IsValid() bool {
	return v != nil && v.typ.IsValid()
}

func (v *Value) Type() Type {
	if v == nil {
		return Type{}
	}
	return v.typ
}

// Unset releases the payload and returns the value to the uninitialized
// state.
func (v *Value) Unset() {
	if v == nil || !v.typ.IsValid() {
		return
	}
	releaseData(v.typ, v.data)
	v.typ = Type{}
	v.data = nil
}

// Reset releases the payload and stores the zero value of the current type.
func (v *Value) Reset() {
	if !v.IsValid() {
		return
	}
	releaseData(v.typ, v.data)
	v.data = zeroData(v.typ.Kind())
}

// Copy returns a new Value holding a copy of the payload. Objects get an
// extra reference, boxed values are copied with their copy function.
func (v *Value) Copy() *Value {
	if !v.IsValid() {
		return &Value{}
	}
	return &Value{
		typ:  v.typ,
		data: copyData(v.typ, v.data),
	}
}

func (v *Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.typ.IsString() {
		return fmt.Sprintf("%s(%q)", v.typ, v.data)
	}
	if v.typ.node.enum != nil {
		return fmt.Sprintf("%s(%s)", v.typ, v.typ.node.enum.format(toInt64(v.data)))
	}
	return fmt.Sprintf("%s(%v)", v.typ, v.data)
}

// setObject stores obj and takes a reference on it.
func (v *Value) setObject(obj *Object) {
	if obj != nil {
		obj.Ref()
	}
	old, _ := v.data.(*Object)
	v.data = obj
	if old != nil {
		old.Unref()
	}
}

func (v *Value) engine() *engine {
	return v.typ.engine()
}

func (v *Value) CanTransformTo(t Type) bool {
	if !v.IsValid() {
		return false
	}
	return t.IsValueType() && v.engine().CanTransform(v.typ, t)
}

// TransformTo converts the value into a new Value of type t with the
// registered transformations.
func (v *Value) TransformTo(t Type) (*Value, error) {
	if !v.IsValid() {
		return nil, InvalidValueError{}
	}
	if !v.CanTransformTo(t) {
		return nil, InvalidTypeError{Requested: t, Held: v.typ}
	}

	dst := &Value{}
	if err := dst.Init(t); err != nil {
		return nil, err
	}
	if err := v.engine().transforms.transform(v, dst); err != nil {
		dst.Unset()
		return nil, TransformationFailedError{From: v.typ, To: t, Cause: err}
	}
	return dst, nil
}

// GetData stores the payload in out, which must be settable. The type out is
// mapped to decides which value vtable is used, values of other types are
// transformed first when possible. Interface outputs receive the natural Go
// representation of the held type.
func (v *Value) GetData(out reflect.Value) error {
	if !v.IsValid() {
		return InvalidValueError{}
	}
	if !out.IsValid() || !out.CanSet() {
		return errors.New("could not get value data, output is not settable")
	}

	dataType := v.typ
	if out.Kind() != reflect.Interface {
		dataType = v.engine().TypeOf(out.Type())
		if !dataType.IsValid() {
			return UnregisteredTypeError{GoType: out.Type()}
		}
	}

	return v.getData(dataType, out)
}

func (v *Value) getData(dataType Type, out reflect.Value) error {
	e := v.engine()

	if v.typ.IsA(dataType) {
		vtable := e.vtables.lookup(dataType)
		if vtable.Get == nil {
			return UnregisteredTypeError{Type: dataType}
		}
		return vtable.Get(v, out)
	}

	if dataType.IsValueType() && e.CanTransform(v.typ, dataType) {
		tmp := &Value{}
		if err := tmp.Init(dataType); err != nil {
			return err
		}
		defer tmp.Unset()

		if err := e.transforms.transform(v, tmp); err != nil {
			return TransformationFailedError{From: v.typ, To: dataType, Cause: err}
		}
		return tmp.getData(dataType, out)
	}

	return InvalidTypeError{Requested: dataType, Held: v.typ}
}

// SetData stores in as the payload. Go values whose type maps to another
// type are transformed when possible.
func (v *Value) SetData(in reflect.Value) error {
	if !v.IsValid() {
		return InvalidValueError{}
	}
	if in.IsValid() && in.Kind() == reflect.Interface && !in.IsNil() {
		in = in.Elem()
	}

	e := v.engine()
	dataType := e.typeOfNative(in)
	if isNilNative(in) && (!dataType.IsValid() || dataType.Kind() == v.typ.Kind()) {
		switch v.typ.Kind() {
		case KindObject, KindParam, KindBoxed, KindPointer:
			dataType = v.typ
		}
	}
	if !dataType.IsValid() {
		if !in.IsValid() {
			return UnregisteredTypeError{}
		}
		return UnregisteredTypeError{GoType: in.Type()}
	}

	if dataType.IsA(v.typ) {
		vtable := e.vtables.lookup(v.typ)
		if vtable.Set == nil {
			return UnregisteredTypeError{Type: v.typ}
		}
		return vtable.Set(v, in)
	}

	if dataType.IsValueType() && e.CanTransform(dataType, v.typ) {
		tmp := &Value{}
		if err := tmp.Init(dataType); err != nil {
			return err
		}
		defer tmp.Unset()

		if err := tmp.SetData(in); err != nil {
			return err
		}
		if err := e.transforms.transform(tmp, v); err != nil {
			return TransformationFailedError{From: dataType, To: v.typ, Cause: err}
		}
		return nil
	}

	return InvalidTypeError{Requested: dataType, Held: v.typ}
}

func isNilNative(in reflect.Value) bool {
	if !in.IsValid() {
		return true
	}
	switch in.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return in.IsNil()
	}
	return false
}

// Get returns the payload of v as a T.
func Get[T any](v *Value) (T, error) {
	var out T
	err := v.GetData(reflect.ValueOf(&out).Elem())
	return out, err
}

// Set stores x in v.
func Set[T any](v *Value, x T) error {
	return v.SetData(reflect.ValueOf(&x).Elem())
}

// GetOrZero is Get for callers that can not handle errors, failures are
// logged and the zero T is returned.
func GetOrZero[T any](v *Value) T {
	out, err := Get[T](v)
	if err != nil {
		var zero T
		loggerFor(v.Type()).Warnf("could not get %T from value %s: %v", zero, v, err)
		return zero
	}
	return out
}

// SetOrWarn is Set for callers that can not handle errors, failures are
// logged.
func SetOrWarn[T any](v *Value, x T) bool {
	if err := Set(v, x); err != nil {
		loggerFor(v.Type()).Warnf("could not set %T on value %s: %v", x, v, err)
		return false
	}
	return true
}
