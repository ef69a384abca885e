package qglib

// collectHandlers returns the handlers for one emission, the ones connected
// with ConnectAfter last. Every returned closure carries an extra reference.
func (o *Object) collectHandlers(sig *signalNode, detail string) []*handler {
	o.lock.Lock()
	defer o.lock.Unlock()

	var before, after []*handler
	for _, h := range o.handlers {
		if h.signal != sig || h.detail != "" && h.detail != detail {
			continue
		}
		h.closure.Ref()
		if h.after {
			after = append(after, h)
		} else {
			before = append(before, h)
		}
	}
	return append(before, after...)
}

// emitv runs the handlers of sig. params[0] holds the instance itself. The
// last handler that returns a value decides the content of result.
func (o *Object) emitv(sig *signalNode, detail string, params []*Value, result *Value) {
	if sig.flags&SignalNoRecurse != 0 {
		key := emissionKey{signal: sig, detail: detail}
		o.lock.Lock()
		if o.emitting[key] > 0 {
			o.lock.Unlock()
			o.engine().logger.Debugf("dropping recursive emission of %s::%s on %s", sig.name, detail, o)
			return
		}
		o.emitting[key]++
		o.lock.Unlock()

		defer func() {
			o.lock.Lock()
			o.emitting[key]--
			o.lock.Unlock()
		}()
	}

	o.Ref()
	defer o.Unref()

	handlers := o.collectHandlers(sig, detail)
	hint := &InvocationHint{
		Signal:   Signal{node: sig},
		Detail:   detail,
		Instance: o,
	}

	for _, h := range handlers {
		// A handler disconnected by an earlier one must not run anymore.
		if h.isConnected() && !h.isBlocked() {
			h.closure.Invoke(result, params, hint)
		}
		h.closure.Unref()
	}
}

type emission struct {
	obj    *Object
	result *Value
}

// emit resolves and validates the emission, packs the arguments and runs
// the handlers. Nothing runs when it returns false.
func emit(instance ObjectLike, detailedSignal string, args []any) (*emission, bool) {
	obj := objectOf(instance)
	if obj == nil {
		fallbackLogger.Warnf("could not emit signal %s, instance is nil", detailedSignal)
		return nil, false
	}
	e := obj.engine()
	if obj.IsDisposed() {
		e.logger.Warnf("could not emit signal %s, %s is disposed", detailedSignal, obj)
		return nil, false
	}

	sig, detail, ok := e.LookupSignal(detailedSignal, obj.typ)
	if !ok {
		e.warnResolution(detailedSignal, obj.typ, "no such signal, can not emit on %s", obj)
		return nil, false
	}

	paramTypes := sig.node.paramTypes
	if len(args) != len(paramTypes) {
		e.warnResolution(detailedSignal, obj.typ, "invalid number of arguments, got %d, expected %d", len(args), len(paramTypes))
		return nil, false
	}

	instanceValue := &Value{}
	if err := instanceValue.Init(obj.typ); err != nil {
		e.logger.Warnf("could not emit signal %s on %s: %v", detailedSignal, obj, err)
		return nil, false
	}
	instanceValue.setObject(obj)

	params := make([]*Value, 0, len(args)+1)
	params = append(params, instanceValue)
	defer func() {
		unsetValues(params)
	}()

	for i := range args {
		v, err := e.packArgument(args[i], paramTypes[i])
		if err != nil {
			e.logger.Warnf("could not pack argument %d for signal %s on %s: %v", i, detailedSignal, obj, err)
			return nil, false
		}
		params = append(params, v)
		if !v.typ.IsA(paramTypes[i]) {
			e.warnResolution(detailedSignal, obj.typ, "argument %d is of type %s, expected %s", i, v.typ, paramTypes[i])
			return nil, false
		}
	}

	var result *Value
	if sig.node.returnType.IsValid() {
		result = e.NewValue(sig.node.returnType)
	}

	e.logger.Tracef("emitting %s on %s with %s", detailedSignal, obj, describeArgs(params[1:]))
	obj.emitv(sig.node, detail, params, result)

	return &emission{
		obj:    obj,
		result: result,
	}, true
}

// Emit emits the signal named by detailedSignal on instance. Failures are
// logged, in that case no handler runs.
func Emit(instance ObjectLike, detailedSignal string, args ...any) {
	em, ok := emit(instance, detailedSignal, args)
	if ok && em.result != nil {
		em.result.Unset()
	}
}

// EmitResult emits the signal and returns its return value as an R. When
// the signal does not return a value, or it can not be converted, the zero R
// is returned. The handlers have run by then.
func EmitResult[R any](instance ObjectLike, detailedSignal string, args ...any) R {
	var zero R

	em, ok := emit(instance, detailedSignal, args)
	if !ok {
		return zero
	}

	logger := em.obj.engine().logger
	if em.result == nil {
		logger.Warnf("signal %s on %s does not return a value, can not return %T", detailedSignal, em.obj, zero)
		return zero
	}
	defer em.result.Unset()

	r, err := Get[R](em.result)
	if err != nil {
		logger.Warnf("could not convert the return value of signal %s on %s to %T: %v", detailedSignal, em.obj, zero, err)
		return zero
	}
	return r
}
