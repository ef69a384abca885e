//go:build darwin || linux

// Package native connects signals to C functions in shared libraries, loaded
// at runtime with purego. Only integer, boolean, enum and pointer arguments
// are supported, they are passed in integer registers.
package native

import (
	"github.com/ebitengine/purego"
	qglib "github.com/jerbob92/go-qglib"
	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// maxArgs is the most arguments purego.SyscallN accepts.
const maxArgs = 15

type Library struct {
	path   string
	handle uintptr
}

// Open loads the shared library at path.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	return &Library{path: path, handle: handle}, nil
}

func (l *Library) Path() string {
	return l.path
}

// Symbol returns the address of the named function.
func (l *Library) Symbol(name string) (uintptr, error) {
	fn, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, errors.Wrapf(err, "could not find %s in %s", name, l.path)
	}
	return fn, nil
}

func (l *Library) Close() error {
	return purego.Dlclose(l.handle)
}

type closureData struct {
	fn       uintptr
	argCount int
	logger   logging.LeveledLogger
}

// NewClosure wraps the C function at fn, which takes argCount arguments. The
// emitting instance is not passed to it.
func NewClosure(e qglib.Engine, fn uintptr, argCount int) (*qglib.Closure, error) {
	if fn == 0 {
		return nil, errors.New("could not create native closure, function pointer is nil")
	}
	if argCount < 0 || argCount > maxArgs {
		return nil, errors.Errorf("could not create native closure, %d arguments are not supported", argCount)
	}
	return qglib.NewClosure(marshal, &closureData{
		fn:       fn,
		argCount: argCount,
		logger:   e.Logger(),
	}), nil
}

func toRegister(v *qglib.Value) (uintptr, error) {
	switch v.Type().Kind() {
	case qglib.KindPointer:
		return qglib.Get[uintptr](v)
	case qglib.KindBool, qglib.KindChar, qglib.KindUChar, qglib.KindInt, qglib.KindUInt,
		qglib.KindLong, qglib.KindULong, qglib.KindInt64, qglib.KindUInt64,
		qglib.KindEnum, qglib.KindFlags:
		x, err := qglib.Get[int64](v)
		return uintptr(x), err
	}
	return 0, errors.Errorf("values of type %s can not be passed to C", v.Type())
}

func storeResult(result *qglib.Value, r1 uintptr) error {
	switch result.Type().Kind() {
	case qglib.KindPointer:
		return qglib.Set(result, r1)
	case qglib.KindBool:
		return qglib.Set(result, r1&0xff != 0)
	case qglib.KindFloat, qglib.KindDouble, qglib.KindString, qglib.KindBoxed, qglib.KindParam, qglib.KindObject:
		return errors.Errorf("values of type %s can not be returned from C", result.Type())
	}
	return qglib.Set(result, int64(r1))
}

func marshal(c *qglib.Closure, result *qglib.Value, params []*qglib.Value, hint *qglib.InvocationHint) {
	data, ok := c.Data().(*closureData)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			data.logger.Errorf("native function %#x for %s panicked: %v", data.fn, hint, r)
		}
	}()

	if len(params) > 0 {
		params = params[1:]
	}
	if len(params) < data.argCount {
		data.logger.Warnf("could not call native function %#x for %s: %v", data.fn, hint, qglib.ArityError{Want: data.argCount, Have: len(params)})
		return
	}

	args := make([]uintptr, data.argCount)
	for i := range args {
		arg, err := toRegister(params[i])
		if err != nil {
			data.logger.Warnf("could not convert argument %d of native function %#x for %s: %v", i, data.fn, hint, err)
			return
		}
		args[i] = arg
	}

	r1, _, _ := purego.SyscallN(data.fn, args...)

	if !result.IsValid() {
		return
	}
	if err := storeResult(result, r1); err != nil {
		data.logger.Warnf("could not store the result of native function %#x for %s: %v", data.fn, hint, err)
	}
}

// Connect connects the C function symbol of lib to the signal named by
// detailedSignal on instance. Failures are logged and give an invalid
// SignalHandler.
func Connect(instance qglib.ObjectLike, detailedSignal string, lib *Library, symbol string, argCount int, flags qglib.ConnectFlags) qglib.SignalHandler {
	if instance == nil || instance.AsObject() == nil {
		return qglib.SignalHandler{}
	}
	e := instance.AsObject().Engine()

	fn, err := lib.Symbol(symbol)
	if err != nil {
		e.Logger().Warnf("could not connect to signal %s: %v", detailedSignal, err)
		return qglib.SignalHandler{}
	}

	closure, err := NewClosure(e, fn, argCount)
	if err != nil {
		e.Logger().Warnf("could not connect to signal %s: %v", detailedSignal, err)
		return qglib.SignalHandler{}
	}
	defer closure.Unref()

	return qglib.ConnectClosure(instance, detailedSignal, closure, flags)
}
