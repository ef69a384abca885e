// Package wasm connects signals to functions exported by WebAssembly modules
// running in wazero.
package wasm

import (
	"context"

	qglib "github.com/jerbob92/go-qglib"
	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"
)

type closureData struct {
	ctx    context.Context
	fn     api.Function
	logger logging.LeveledLogger
}

// NewClosure wraps fn in a closure. The emitting instance is not passed to
// fn, the remaining params are converted to the wasm parameter types of fn.
// The first result of fn is stored in the result value.
func NewClosure(ctx context.Context, e qglib.Engine, fn api.Function) (*qglib.Closure, error) {
	if fn == nil {
		return nil, errors.New("could not create wasm closure, no function given")
	}
	for _, vt := range fn.Definition().ParamTypes() {
		if !isNumeric(vt) {
			return nil, errors.Errorf("could not create wasm closure for %s, parameter type %s is not supported", fn.Definition().Name(), api.ValueTypeName(vt))
		}
	}

	return qglib.NewClosure(marshal, &closureData{
		ctx:    ctx,
		fn:     fn,
		logger: e.Logger(),
	}), nil
}

func isNumeric(vt api.ValueType) bool {
	switch vt {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
		return true
	}
	return false
}

func encodeParam(v *qglib.Value, vt api.ValueType) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		x, err := qglib.Get[int32](v)
		return api.EncodeI32(x), err
	case api.ValueTypeI64:
		x, err := qglib.Get[int64](v)
		return api.EncodeI64(x), err
	case api.ValueTypeF32:
		x, err := qglib.Get[float32](v)
		return api.EncodeF32(x), err
	case api.ValueTypeF64:
		x, err := qglib.Get[float64](v)
		return api.EncodeF64(x), err
	}
	return 0, errors.Errorf("unsupported wasm type %s", api.ValueTypeName(vt))
}

func decodeResult(result uint64, vt api.ValueType) any {
	switch vt {
	case api.ValueTypeI32:
		return api.DecodeI32(result)
	case api.ValueTypeI64:
		return int64(result)
	case api.ValueTypeF32:
		return api.DecodeF32(result)
	case api.ValueTypeF64:
		return api.DecodeF64(result)
	}
	return nil
}

func marshal(c *qglib.Closure, result *qglib.Value, params []*qglib.Value, hint *qglib.InvocationHint) {
	data, ok := c.Data().(*closureData)
	if !ok {
		return
	}
	def := data.fn.Definition()

	defer func() {
		if r := recover(); r != nil {
			data.logger.Errorf("wasm function %s for %s panicked: %v", def.Name(), hint, r)
		}
	}()

	if len(params) > 0 {
		params = params[1:]
	}

	paramTypes := def.ParamTypes()
	if len(params) < len(paramTypes) {
		data.logger.Warnf("could not call wasm function %s for %s: %v", def.Name(), hint, qglib.ArityError{Want: len(paramTypes), Have: len(params)})
		return
	}

	stack := make([]uint64, len(paramTypes))
	for i, vt := range paramTypes {
		encoded, err := encodeParam(params[i], vt)
		if err != nil {
			data.logger.Warnf("could not convert argument %d of wasm function %s for %s: %v", i, def.Name(), hint, err)
			return
		}
		stack[i] = encoded
	}

	results, err := data.fn.Call(data.ctx, stack...)
	if err != nil {
		data.logger.Warnf("wasm function %s for %s failed: %v", def.Name(), hint, err)
		return
	}
	if len(results) == 0 {
		return
	}
	if !result.IsValid() {
		data.logger.Warnf("wasm function %s for %s returned a value, but no return value is expected, discarding it", def.Name(), hint)
		return
	}

	if err := qglib.Set(result, decodeResult(results[0], def.ResultTypes()[0])); err != nil {
		data.logger.Warnf("could not store the result of wasm function %s for %s: %v", def.Name(), hint, err)
	}
}

// connectClosure resolves exportName on mod and wraps it. Engines can panic
// on modules they do not support, that is reported as an error.
func connectClosure(ctx context.Context, e qglib.Engine, mod api.Module, exportName string) (closure *qglib.Closure, err error) {
	defer func() {
		if r := recover(); r != nil {
			closure = nil
			err = errors.Errorf("could not resolve export %s: %v", exportName, r)
		}
	}()

	fn := mod.ExportedFunction(exportName)
	if fn == nil {
		return nil, errors.Errorf("module %s does not export %s", mod.Name(), exportName)
	}
	return NewClosure(ctx, e, fn)
}

// Connect connects the function exported as exportName by mod to the signal
// named by detailedSignal on instance. Failures are logged and give an
// invalid SignalHandler.
func Connect(ctx context.Context, instance qglib.ObjectLike, detailedSignal string, mod api.Module, exportName string, flags qglib.ConnectFlags) qglib.SignalHandler {
	if instance == nil || instance.AsObject() == nil {
		return qglib.SignalHandler{}
	}
	e := instance.AsObject().Engine()

	if mod == nil {
		e.Logger().Warnf("could not connect to signal %s, no module given", detailedSignal)
		return qglib.SignalHandler{}
	}

	closure, err := connectClosure(ctx, e, mod, exportName)
	if err != nil {
		e.Logger().Warnf("could not connect to signal %s: %v", detailedSignal, err)
		return qglib.SignalHandler{}
	}
	defer closure.Unref()

	return qglib.ConnectClosure(instance, detailedSignal, closure, flags)
}
