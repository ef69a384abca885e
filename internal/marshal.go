package qglib

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// callable is a Go func, optionally bound to a receiver that is passed as the
// first argument.
type callable struct {
	fn       reflect.Value
	receiver reflect.Value
}

func newCallable(fn any, receiver any) (*callable, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, errors.Errorf("slot must be a non-nil func, got %T", fn)
	}

	ft := fv.Type()
	c := &callable{fn: fv}
	if receiver != nil {
		rv := reflect.ValueOf(receiver)
		if ft.NumIn() == 0 || !rv.Type().AssignableTo(ft.In(0)) {
			return nil, errors.Errorf("slot %s can not be called with a receiver of type %T", ft, receiver)
		}
		c.receiver = rv
	}

	switch ft.NumOut() {
	case 0, 1:
	case 2:
		if ft.Out(0) == errorType || ft.Out(1) != errorType {
			return nil, errors.Errorf("slot %s must return at most one value and an optional error", ft)
		}
	default:
		return nil, errors.Errorf("slot %s must return at most one value and an optional error", ft)
	}

	return c, nil
}

func (c *callable) String() string {
	return c.fn.Type().String()
}

// invoke unpacks params into the arguments of the func and calls it. Extra
// params are ignored, a variadic func receives all remaining params.
func (c *callable) invoke(params []*Value) (reflect.Value, error) {
	ft := c.fn.Type()

	offset := 0
	args := make([]reflect.Value, 0, ft.NumIn())
	if c.receiver.IsValid() {
		offset = 1
		args = append(args, c.receiver)
	}

	fixed := ft.NumIn() - offset
	if ft.IsVariadic() {
		fixed--
	}
	if len(params) < fixed {
		return reflect.Value{}, ArityError{Want: fixed, Have: len(params)}
	}

	for i := 0; i < fixed; i++ {
		arg := reflect.New(ft.In(i + offset)).Elem()
		if err := params[i].GetData(arg); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "could not unpack argument %d", i)
		}
		args = append(args, arg)
	}

	var out []reflect.Value
	if ft.IsVariadic() {
		rest := params[fixed:]
		variadic := reflect.MakeSlice(ft.In(ft.NumIn()-1), len(rest), len(rest))
		for i := range rest {
			if err := rest[i].GetData(variadic.Index(i)); err != nil {
				return reflect.Value{}, errors.Wrapf(err, "could not unpack argument %d", fixed+i)
			}
		}
		out = c.fn.CallSlice(append(args, variadic))
	} else {
		out = c.fn.Call(args)
	}

	if len(out) > 0 && ft.Out(len(out)-1) == errorType {
		if errValue := out[len(out)-1]; !errValue.IsNil() {
			return reflect.Value{}, errValue.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

type funcClosureData struct {
	engine     *engine
	callable   *callable
	passSender bool
}

// CreateClosure wraps fn in a closure. The first param of every invocation
// is the emitting instance, fn only receives it when passSender is set.
func (e *engine) CreateClosure(fn any, passSender bool) (*Closure, error) {
	return e.newFuncClosure(fn, nil, passSender)
}

func (e *engine) newFuncClosure(fn any, receiver any, passSender bool) (*Closure, error) {
	c, err := newCallable(fn, receiver)
	if err != nil {
		return nil, err
	}
	return NewClosure(funcMarshaller, &funcClosureData{
		engine:     e,
		callable:   c,
		passSender: passSender,
	}), nil
}

func funcMarshaller(c *Closure, result *Value, params []*Value, hint *InvocationHint) {
	data, ok := c.Data().(*funcClosureData)
	if !ok {
		fallbackLogger.Errorf("could not invoke %s, closure does not wrap a Go func", hint)
		return
	}
	logger := data.engine.logger

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("handler %s for %s panicked: %+v", data.callable, hint, panicError(r))
		}
	}()

	if !data.passSender && len(params) > 0 {
		params = params[1:]
	}

	ret, err := data.callable.invoke(params)
	if err != nil {
		logger.Warnf("handler %s for %s failed: %v", data.callable, hint, err)
		return
	}
	if !ret.IsValid() {
		return
	}

	if !result.IsValid() {
		logger.Warnf("handler %s for %s returned a %s, but no return value is expected, discarding it", data.callable, hint, ret.Type())
		return
	}
	if err := result.SetData(ret); err != nil {
		logger.Warnf("could not store the return value of handler %s for %s: %v", data.callable, hint, err)
	}
}

// packArgument stores arg in a new Value of its own dynamic type. A nil arg
// gives the zero value of paramType.
func (e *engine) packArgument(arg any, paramType Type) (*Value, error) {
	in := reflect.ValueOf(arg)

	t := e.typeOfNative(in)
	if isNilNative(in) && (!t.IsValid() || t.Kind() == paramType.Kind()) {
		t = paramType
	}
	if !t.IsValid() {
		return nil, UnregisteredTypeError{GoType: reflect.TypeOf(arg)}
	}

	v := &Value{}
	if err := v.Init(t); err != nil {
		return nil, err
	}
	if in.IsValid() && !isNilNative(in) {
		if err := v.SetData(in); err != nil {
			v.Unset()
			return nil, err
		}
	}
	return v, nil
}

func unsetValues(values []*Value) {
	for i := range values {
		values[i].Unset()
	}
}

func describeArgs(values []*Value) string {
	s := ""
	for i := range values {
		if i > 0 {
			s += ", "
		}
		s += values[i].String()
	}
	return fmt.Sprintf("(%s)", s)
}
