package qglib

import (
	"reflect"
	"sync"
)

// ValueVTable moves Go data in and out of a Value. Set receives a Go value
// whose type is compatible with the type of the Value, Get receives a
// settable Go value to store the payload in.
type ValueVTable struct {
	Set func(v *Value, in reflect.Value) error
	Get func(v *Value, out reflect.Value) error
}

func (vt ValueVTable) IsNull() bool {
	return vt.Set == nil && vt.Get == nil
}

type valueVTableDispatcher struct {
	lock    sync.RWMutex
	vtables map[*typeNode]ValueVTable
}

func newValueVTableDispatcher() *valueVTableDispatcher {
	return &valueVTableDispatcher{
		vtables: map[*typeNode]ValueVTable{},
	}
}

func (d *valueVTableDispatcher) register(t Type, vtable ValueVTable) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.vtables[t.node] = vtable
}

// lookup returns the vtable of t, or of its closest ancestor that has one.
func (d *valueVTableDispatcher) lookup(t Type) ValueVTable {
	d.lock.RLock()
	defer d.lock.RUnlock()

	for n := t.node; n != nil; n = n.parent {
		if vtable, ok := d.vtables[n]; ok {
			return vtable
		}
	}
	return ValueVTable{}
}

// RegisterValueVTable sets the vtable used for t and the types derived from
// it that have no vtable of their own. An earlier registration for t is
// replaced.
func (e *engine) RegisterValueVTable(t Type, vtable ValueVTable) {
	if !t.IsValid() || t.node.engine != e {
		e.logger.Warnf("could not register value vtable, invalid type %s", t)
		return
	}
	e.vtables.register(t, vtable)
}

func (e *engine) LookupValueVTable(t Type) ValueVTable {
	return e.vtables.lookup(t)
}
