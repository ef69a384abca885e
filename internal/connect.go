package qglib

import (
	"encoding/binary"
	"hash/fnv"
	"reflect"
	"sync/atomic"
)

type ConnectFlags uint

const (
	// ConnectAfter runs the handler after the handlers connected without it.
	ConnectAfter ConnectFlags = 1 << iota
	// PassSender passes the emitting instance as the first argument.
	PassSender
)

type handler struct {
	id       uint64
	signal   *signalNode
	detail   string
	closure  *Closure
	after    bool
	receiver any
	slotKey  uint64

	notifier DestroyNotifier
	notifyID uint64

	blocked      int32
	disconnected int32
}

func (h *handler) isConnected() bool {
	return atomic.LoadInt32(&h.disconnected) == 0
}

func (h *handler) isBlocked() bool {
	return atomic.LoadInt32(&h.blocked) > 0
}

// release drops the closure and the destroy notify on the receiver. Only the
// first call does anything.
func (h *handler) release() {
	if !atomic.CompareAndSwapInt32(&h.disconnected, 0, 1) {
		return
	}
	if h.notifier != nil {
		h.notifier.RemoveDestroyNotify(h.notifyID)
	}
	h.closure.Invalidate()
	h.closure.Unref()
}

// SignalHandler identifies one connection. The zero SignalHandler is
// returned by failed connects, it is not valid.
type SignalHandler struct {
	instance *Object
	id       uint64
}

func (sh SignalHandler) IsValid() bool {
	return sh.instance != nil && sh.id != 0
}

func (sh SignalHandler) ID() uint64 {
	return sh.id
}

func (sh SignalHandler) Instance() *Object {
	return sh.instance
}

func (sh SignalHandler) find() *handler {
	if !sh.IsValid() {
		return nil
	}
	sh.instance.lock.Lock()
	defer sh.instance.lock.Unlock()
	for _, h := range sh.instance.handlers {
		if h.id == sh.id {
			return h
		}
	}
	return nil
}

func (sh SignalHandler) IsConnected() bool {
	h := sh.find()
	return h != nil && h.isConnected()
}

// Disconnect removes the handler. It is a no-op when the handler is already
// gone.
func (sh SignalHandler) Disconnect() {
	if !sh.IsValid() {
		return
	}
	sh.instance.disconnectHandlers(func(h *handler) bool {
		return h.id == sh.id
	})
}

// Block stops the handler from being called until a matching Unblock.
func (sh SignalHandler) Block() {
	if h := sh.find(); h != nil {
		atomic.AddInt32(&h.blocked, 1)
	}
}

func (sh SignalHandler) Unblock() {
	h := sh.find()
	if h == nil {
		return
	}
	for {
		blocked := atomic.LoadInt32(&h.blocked)
		if blocked <= 0 {
			sh.instance.engine().logger.Warnf("unblock of handler %d on %s, which is not blocked", sh.id, sh.instance)
			return
		}
		if atomic.CompareAndSwapInt32(&h.blocked, blocked, blocked-1) {
			return
		}
	}
}

func (o *Object) addHandler(h *handler) bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.IsDisposed() || !h.isConnected() {
		return false
	}
	o.handlers = append(o.handlers, h)
	return true
}

// disconnectHandlers removes and releases every handler matching match. It
// returns how many handlers were removed.
func (o *Object) disconnectHandlers(match func(h *handler) bool) int {
	o.lock.Lock()
	var removed []*handler
	kept := make([]*handler, 0, len(o.handlers))
	for _, h := range o.handlers {
		if match(h) {
			removed = append(removed, h)
		} else {
			kept = append(kept, h)
		}
	}
	o.handlers = kept
	o.lock.Unlock()

	for _, h := range removed {
		h.release()
	}
	return len(removed)
}

func slotKey(slot any) uint64 {
	v := reflect.ValueOf(slot)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v.Pointer()))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func sameReceiver(a any, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Connect connects slot to the signal named by detailedSignal on instance.
// When receiver is nil slot is called as is, otherwise slot is a method
// expression and receiver is passed as its first argument. Receivers that
// implement DestroyNotifier are disconnected automatically when they are
// destroyed. Failures are logged and give an invalid SignalHandler.
func Connect(instance ObjectLike, detailedSignal string, receiver any, slot any, flags ConnectFlags) SignalHandler {
	obj := objectOf(instance)
	if obj == nil {
		fallbackLogger.Warnf("could not connect to signal %s, instance is nil", detailedSignal)
		return SignalHandler{}
	}
	e := obj.engine()

	closure, err := e.newFuncClosure(slot, receiver, flags&PassSender != 0)
	if err != nil {
		e.logger.Warnf("could not connect to signal %s on %s: %v", detailedSignal, obj, err)
		return SignalHandler{}
	}
	defer closure.Unref()

	return obj.connect(detailedSignal, closure, flags, receiver, slotKey(slot))
}

// ConnectClosure connects a custom closure to the signal named by
// detailedSignal on instance. The connection takes its own reference on
// closure.
func ConnectClosure(instance ObjectLike, detailedSignal string, closure *Closure, flags ConnectFlags) SignalHandler {
	obj := objectOf(instance)
	if obj == nil {
		fallbackLogger.Warnf("could not connect to signal %s, instance is nil", detailedSignal)
		return SignalHandler{}
	}
	if closure == nil {
		obj.engine().logger.Warnf("could not connect to signal %s on %s, closure is nil", detailedSignal, obj)
		return SignalHandler{}
	}
	return obj.connect(detailedSignal, closure, flags, nil, 0)
}

func (o *Object) connect(detailedSignal string, closure *Closure, flags ConnectFlags, receiver any, key uint64) SignalHandler {
	e := o.engine()
	if o.IsDisposed() {
		e.logger.Warnf("could not connect to signal %s, %s is disposed", detailedSignal, o)
		return SignalHandler{}
	}

	sig, detail, ok := e.LookupSignal(detailedSignal, o.typ)
	if !ok {
		e.warnResolution(detailedSignal, o.typ, "no such signal, can not connect on %s", o)
		return SignalHandler{}
	}

	h := &handler{
		id:       e.nextHandlerID(),
		signal:   sig.node,
		detail:   detail,
		closure:  closure.Ref(),
		after:    flags&ConnectAfter != 0,
		receiver: receiver,
		slotKey:  key,
	}

	if notifier, ok := receiver.(DestroyNotifier); ok {
		// Release first, so a destroy racing with addHandler below either
		// keeps h out of the list or finds it there.
		id := notifier.AddDestroyNotify(func() {
			h.release()
			o.disconnectHandlers(func(x *handler) bool {
				return x == h
			})
		})
		if id == 0 {
			e.logger.Warnf("could not connect to signal %s on %s, receiver %T is already destroyed", detailedSignal, o, receiver)
			h.release()
			return SignalHandler{}
		}
		h.notifier = notifier
		h.notifyID = id
	}

	if !o.addHandler(h) {
		if h.isConnected() {
			e.logger.Warnf("could not connect to signal %s, %s is disposed", detailedSignal, o)
		} else {
			e.logger.Warnf("could not connect to signal %s on %s, receiver %T was destroyed", detailedSignal, o, receiver)
		}
		h.release()
		return SignalHandler{}
	}

	return SignalHandler{instance: o, id: h.id}
}

// Disconnect removes the handlers of instance matching all given criteria.
// An empty detailedSignal, a nil receiver or a nil slot match anything. It
// reports whether any handler was removed.
func Disconnect(instance ObjectLike, detailedSignal string, receiver any, slot any) bool {
	obj := objectOf(instance)
	if obj == nil {
		return false
	}
	e := obj.engine()

	var sig *signalNode
	var detail string
	if detailedSignal != "" {
		s, d, ok := e.LookupSignal(detailedSignal, obj.typ)
		if !ok {
			e.logger.Warnf("could not disconnect from signal %s, %s has no such signal", detailedSignal, obj.typ)
			return false
		}
		sig, detail = s.node, d
	}

	key := slotKey(slot)
	removed := obj.disconnectHandlers(func(h *handler) bool {
		if sig != nil && h.signal != sig {
			return false
		}
		if detail != "" && h.detail != detail {
			return false
		}
		if receiver != nil && !sameReceiver(h.receiver, receiver) {
			return false
		}
		if slot != nil && h.slotKey != key {
			return false
		}
		return true
	})

	if removed == 0 {
		e.logger.Debugf("disconnect on %s matched no handlers", obj)
	}
	return removed > 0
}
