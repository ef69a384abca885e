package qglib

import (
	"sync"
	"sync/atomic"
)

// InvocationHint tells a marshaller which emission it is called for. It is
// nil when a closure is invoked directly.
type InvocationHint struct {
	Signal   Signal
	Detail   string
	Instance *Object
}

func (h *InvocationHint) String() string {
	if h == nil || !h.Signal.IsValid() {
		return "closure"
	}
	name := h.Signal.Name()
	if h.Detail != "" {
		name += "::" + h.Detail
	}
	if h.Instance != nil {
		return "signal " + name + " on " + h.Instance.String()
	}
	return "signal " + name
}

// MarshalFunc converts params into a call of whatever the closure wraps and
// stores its return value in result. Marshallers must not panic.
type MarshalFunc func(c *Closure, result *Value, params []*Value, hint *InvocationHint)

// Closure is a refcounted callable invoked with a list of Values. It starts
// with one reference owned by the creator, when the last reference is dropped
// the finalize notifiers run.
type Closure struct {
	refCount    int32
	invalidated int32
	marshal     MarshalFunc
	data        any

	lock       sync.Mutex
	finalizers []func()
}

func NewClosure(marshal MarshalFunc, data any) *Closure {
	return &Closure{
		refCount: 1,
		marshal:  marshal,
		data:     data,
	}
}

func (c *Closure) Ref() *Closure {
	atomic.AddInt32(&c.refCount, 1)
	return c
}

func (c *Closure) Unref() {
	if atomic.AddInt32(&c.refCount, -1) == 0 {
		c.finalize()
	}
}

func (c *Closure) RefCount() int32 {
	return atomic.LoadInt32(&c.refCount)
}

func (c *Closure) Data() any {
	return c.data
}

// AddFinalizeNotifier registers fn to run once the last reference is dropped.
// Notifiers run in the order they were added.
func (c *Closure) AddFinalizeNotifier(fn func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.finalizers = append(c.finalizers, fn)
}

func (c *Closure) finalize() {
	c.Invalidate()

	c.lock.Lock()
	finalizers := c.finalizers
	c.finalizers = nil
	c.lock.Unlock()

	for i := range finalizers {
		finalizers[i]()
	}
	c.data = nil
}

// Invalidate marks the closure as no longer callable, later invocations are
// ignored.
func (c *Closure) Invalidate() {
	atomic.StoreInt32(&c.invalidated, 1)
}

func (c *Closure) IsValid() bool {
	return atomic.LoadInt32(&c.invalidated) == 0
}

func (c *Closure) Invoke(result *Value, params []*Value, hint *InvocationHint) {
	if !c.IsValid() || c.marshal == nil {
		return
	}
	c.Ref()
	defer c.Unref()
	c.marshal(c, result, params, hint)
}
