package qglib

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Object is an instance of an object type. It carries a reference count,
// its property values and the handlers connected to its signals. The last
// Unref disposes the object: destroy notifies run, all handlers are
// disconnected and the property values are released.
type Object struct {
	typ      Type
	id       uuid.UUID
	refCount int32
	disposed int32

	lock       sync.Mutex
	properties map[string]*Value
	handlers   []*handler
	emitting   map[emissionKey]int
	wrapper    any

	destroyNotifies destroyNotifyList
}

type emissionKey struct {
	signal *signalNode
	detail string
}

// NewObject creates an instance of t with one reference. Properties not in
// properties get their default value.
func (e *engine) NewObject(t Type, properties map[string]any) (*Object, error) {
	if !t.IsObject() || !t.IsValueType() || t.node.engine != e {
		return nil, errors.Errorf("could not create object, %s is not an instantiable object type", t)
	}

	u, _ := uuid.NewV4()
	obj := &Object{
		typ:        t,
		id:         u,
		refCount:   1,
		properties: map[string]*Value{},
		emitting:   map[emissionKey]int{},
	}

	for _, pspec := range t.Properties() {
		v, err := pspec.defaultValue()
		if err != nil {
			obj.Unref()
			return nil, errors.Wrapf(err, "could not create %s", t)
		}
		obj.properties[pspec.Name] = v
	}

	for name, x := range properties {
		pspec := t.FindProperty(name)
		if pspec == nil {
			obj.Unref()
			return nil, errors.Errorf("could not create %s, it has no property %s", t, name)
		}
		if pspec.Flags&(ParamWritable|ParamConstructOnly) == 0 {
			obj.Unref()
			return nil, errors.Errorf("could not create %s, property %s is not writable", t, name)
		}
		if _, err := obj.storeProperty(pspec, x); err != nil {
			obj.Unref()
			return nil, errors.Wrapf(err, "could not create %s", t)
		}
	}

	return obj, nil
}

func (o *Object) AsObject() *Object {
	return o
}

func (o *Object) Type() Type {
	return o.typ
}

func (o *Object) ID() uuid.UUID {
	return o.id
}

func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	return o.typ.Name() + "(" + o.id.String() + ")"
}

func (o *Object) Engine() IEngine {
	return o.typ.engine()
}

func (o *Object) engine() *engine {
	return o.typ.engine()
}

// SetWrapper sets the Go value that represents this object, usually a
// struct embedding it. Values holding the object hand out the wrapper when a
// Go type it is assignable to is requested.
func (o *Object) SetWrapper(wrapper any) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.wrapper = wrapper
}

func (o *Object) Wrapper() any {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.wrapper
}

func (o *Object) Ref() *Object {
	atomic.AddInt32(&o.refCount, 1)
	return o
}

func (o *Object) Unref() {
	refs := atomic.AddInt32(&o.refCount, -1)
	if refs == 0 {
		o.dispose()
	} else if refs < 0 {
		o.engine().logger.Warnf("unref of %s, which has no references left", o)
	}
}

func (o *Object) RefCount() int32 {
	return atomic.LoadInt32(&o.refCount)
}

func (o *Object) IsDisposed() bool {
	return atomic.LoadInt32(&o.disposed) == 1
}

func (o *Object) dispose() {
	if !atomic.CompareAndSwapInt32(&o.disposed, 0, 1) {
		return
	}

	o.destroyNotifies.fire()
	o.disconnectHandlers(func(*handler) bool {
		return true
	})

	o.lock.Lock()
	properties := o.properties
	o.properties = nil
	o.wrapper = nil
	o.lock.Unlock()

	for _, v := range properties {
		v.Unset()
	}
}

// AddDestroyNotify registers fn to run when the object is disposed. On a
// disposed object fn runs immediately and 0 is returned.
func (o *Object) AddDestroyNotify(fn func()) uint64 {
	return o.destroyNotifies.add(fn)
}

func (o *Object) RemoveDestroyNotify(id uint64) {
	o.destroyNotifies.remove(id)
}

func (o *Object) FindProperty(name string) *ParamSpec {
	return o.typ.FindProperty(name)
}

func (o *Object) ListProperties() []*ParamSpec {
	return o.typ.Properties()
}

// storeProperty converts x to the property type and stores it. It reports
// whether the stored value changed.
func (o *Object) storeProperty(pspec *ParamSpec, x any) (bool, error) {
	v := &Value{}
	if err := v.Init(pspec.ValueType); err != nil {
		return false, err
	}
	if err := v.SetData(reflect.ValueOf(x)); err != nil {
		return false, errors.Wrapf(err, "could not set property %s", pspec.Name)
	}

	o.lock.Lock()
	if o.properties == nil {
		o.lock.Unlock()
		v.Unset()
		return false, errors.Errorf("could not set property %s, %s is disposed", pspec.Name, o)
	}
	old := o.properties[pspec.Name]
	o.properties[pspec.Name] = v
	o.lock.Unlock()

	changed := !sameData(old, v)
	old.Unset()
	return changed, nil
}

func sameData(a *Value, b *Value) bool {
	if !a.IsValid() || !b.IsValid() || a.typ != b.typ {
		return false
	}
	if a.data == nil || b.data == nil {
		return a.data == nil && b.data == nil
	}
	if !reflect.TypeOf(a.data).Comparable() {
		return false
	}
	return a.data == b.data
}

// SetProperty stores x in the named property and emits notify with the
// property name as detail.
func (o *Object) SetProperty(name string, x any) error {
	if o.IsDisposed() {
		return errors.Errorf("could not set property %s, %s is disposed", name, o)
	}
	pspec := o.typ.FindProperty(name)
	if pspec == nil {
		return errors.Errorf("could not set property %s, %s has no such property", name, o.typ)
	}
	if pspec.Flags&ParamWritable == 0 || pspec.Flags&ParamConstructOnly != 0 {
		return errors.Errorf("could not set property %s on %s, it is not writable", pspec.Name, o.typ)
	}

	changed, err := o.storeProperty(pspec, x)
	if err != nil {
		return err
	}
	if changed || pspec.Flags&ParamExplicitNotify == 0 {
		o.notify(pspec)
	}
	return nil
}

// Property returns a copy of the value of the named property.
func (o *Object) Property(name string) (*Value, error) {
	pspec := o.typ.FindProperty(name)
	if pspec == nil {
		return nil, errors.Errorf("could not get property %s, %s has no such property", name, o.typ)
	}
	if pspec.Flags&ParamReadable == 0 {
		return nil, errors.Errorf("could not get property %s on %s, it is not readable", pspec.Name, o.typ)
	}

	o.lock.Lock()
	defer o.lock.Unlock()
	v, ok := o.properties[pspec.Name]
	if !ok {
		return nil, errors.Errorf("could not get property %s, %s is disposed", pspec.Name, o)
	}
	return v.Copy(), nil
}

// GetProperty returns the value of the named property as a T.
func GetProperty[T any](instance ObjectLike, name string) (T, error) {
	var zero T
	obj := objectOf(instance)
	if obj == nil {
		return zero, errors.Errorf("could not get property %s of nil object", name)
	}
	v, err := obj.Property(name)
	if err != nil {
		return zero, err
	}
	defer v.Unset()
	return Get[T](v)
}

// Notify emits notify for the named property.
func (o *Object) Notify(name string) {
	pspec := o.typ.FindProperty(name)
	if pspec == nil {
		o.engine().logger.Warnf("could not notify property %s, %s has no such property", name, o.typ)
		return
	}
	o.notify(pspec)
}

func (o *Object) notify(pspec *ParamSpec) {
	e := o.engine()
	sig, _, ok := e.LookupSignal("notify", o.typ)
	if !ok {
		return
	}

	instance := &Value{}
	if err := instance.Init(o.typ); err != nil {
		e.logger.Warnf("could not notify %s on %s: %v", pspec.Name, o, err)
		return
	}
	instance.setObject(o)

	param := &Value{}
	_ = param.Init(e.FundamentalType(KindParam))
	param.data = pspec

	params := []*Value{instance, param}
	o.emitv(sig.node, pspec.Name, params, nil)
	unsetValues(params)
}

func objectOf(instance ObjectLike) *Object {
	if instance == nil {
		return nil
	}
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}
	return instance.AsObject()
}
