package qglib

import (
	"sync"
)

// DestroyNotifier is implemented by receivers that want their signal
// connections dropped when they are destroyed. Connect registers a notify on
// the receiver, it is removed again when the connection goes away first.
type DestroyNotifier interface {
	AddDestroyNotify(fn func()) uint64
	RemoveDestroyNotify(id uint64)
}

type destroyNotify struct {
	id uint64
	fn func()
}

type destroyNotifyList struct {
	lock      sync.Mutex
	counter   uint64
	notifies  []destroyNotify
	destroyed bool
}

// add registers fn. When the list already fired fn is called right away and
// 0 is returned.
func (l *destroyNotifyList) add(fn func()) uint64 {
	l.lock.Lock()
	if l.destroyed {
		l.lock.Unlock()
		fn()
		return 0
	}
	l.counter++
	id := l.counter
	l.notifies = append(l.notifies, destroyNotify{id: id, fn: fn})
	l.lock.Unlock()
	return id
}

func (l *destroyNotifyList) remove(id uint64) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := range l.notifies {
		if l.notifies[i].id == id {
			l.notifies = append(l.notifies[:i], l.notifies[i+1:]...)
			return
		}
	}
}

// fire runs every notify once, in the order they were added.
func (l *destroyNotifyList) fire() {
	l.lock.Lock()
	if l.destroyed {
		l.lock.Unlock()
		return
	}
	l.destroyed = true
	notifies := l.notifies
	l.notifies = nil
	l.lock.Unlock()

	for i := range notifies {
		notifies[i].fn()
	}
}

func (l *destroyNotifyList) isDestroyed() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.destroyed
}

// Trackable can be embedded in a receiver struct to make it a
// DestroyNotifier. Calling Destroy disconnects every handler the receiver
// was connected with.
type Trackable struct {
	notifies destroyNotifyList
}

func (t *Trackable) AddDestroyNotify(fn func()) uint64 {
	return t.notifies.add(fn)
}

func (t *Trackable) RemoveDestroyNotify(id uint64) {
	t.notifies.remove(id)
}

func (t *Trackable) Destroy() {
	t.notifies.fire()
}

func (t *Trackable) IsDestroyed() bool {
	return t.notifies.isDestroyed()
}
