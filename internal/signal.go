package qglib

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type SignalFlags uint

const (
	SignalRunFirst SignalFlags = 1 << iota
	SignalRunLast
	SignalRunCleanup
	// SignalNoRecurse drops emissions of the signal on an instance that is
	// already emitting it.
	SignalNoRecurse
	// SignalDetailed allows a "::detail" suffix when connecting and emitting.
	SignalDetailed
	SignalAction
	SignalNoHooks
)

var signalFlagNames = []struct {
	flag SignalFlags
	name string
}{
	{SignalRunFirst, "run-first"},
	{SignalRunLast, "run-last"},
	{SignalRunCleanup, "run-cleanup"},
	{SignalNoRecurse, "no-recurse"},
	{SignalDetailed, "detailed"},
	{SignalAction, "action"},
	{SignalNoHooks, "no-hooks"},
}

func (f SignalFlags) String() string {
	var names []string
	for _, n := range signalFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseSignalFlags parses the flag names as used in SignalFlags.String.
func ParseSignalFlags(names ...string) (SignalFlags, error) {
	var flags SignalFlags
	for _, name := range names {
		found := false
		for _, n := range signalFlagNames {
			if n.name == strings.TrimSpace(name) {
				flags |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown signal flag %q", name)
		}
	}
	return flags, nil
}

var signalNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

type signalNode struct {
	id         uint32
	name       string
	owner      Type
	flags      SignalFlags
	returnType Type
	paramTypes []Type
}

// Signal is a handle to a registered signal, the zero Signal is invalid.
type Signal struct {
	node *signalNode
}

type SignalQuery struct {
	ID         uint32
	Name       string
	Owner      Type
	Flags      SignalFlags
	ReturnType Type
	ParamTypes []Type
}

func (s Signal) IsValid() bool {
	return s.node != nil
}

func (s Signal) ID() uint32 {
	if s.node == nil {
		return 0
	}
	return s.node.id
}

func (s Signal) Name() string {
	if s.node == nil {
		return ""
	}
	return s.node.name
}

func (s Signal) String() string {
	if s.node == nil {
		return "<invalid>"
	}
	return s.node.owner.Name() + "::" + s.node.name
}

// Query returns the full description of the signal. A void signal has an
// invalid ReturnType.
func (s Signal) Query() SignalQuery {
	if s.node == nil {
		return SignalQuery{}
	}
	return SignalQuery{
		ID:         s.node.id,
		Name:       s.node.name,
		Owner:      s.node.owner,
		Flags:      s.node.flags,
		ReturnType: s.node.returnType,
		ParamTypes: append([]Type(nil), s.node.paramTypes...),
	}
}

type signalRegistry struct {
	lock    sync.RWMutex
	counter uint32
	byOwner map[*typeNode][]*signalNode
}

func newSignalRegistry() *signalRegistry {
	return &signalRegistry{
		byOwner: map[*typeNode][]*signalNode{},
	}
}

// find must be called with the lock held.
func (sr *signalRegistry) find(t Type, name string) *signalNode {
	for n := t.node; n != nil; n = n.parent {
		for _, s := range sr.byOwner[n] {
			if s.name == name {
				return s
			}
		}
	}
	return nil
}

func (e *engine) RegisterSignal(owner Type, name string, flags SignalFlags, returnType Type, paramTypes ...Type) (Signal, error) {
	name = canonicalName(name)
	if !signalNameRegex.MatchString(name) {
		return Signal{}, errors.Errorf("could not register signal %q, invalid signal name", name)
	}
	if !owner.IsObject() || owner.node.engine != e {
		return Signal{}, errors.Errorf("could not register signal %s, owner %s is not an object type of this engine", name, owner)
	}
	if returnType.IsValid() && !returnType.IsValueType() {
		return Signal{}, errors.Errorf("could not register signal %s, return type %s can not hold values", name, returnType)
	}
	for i := range paramTypes {
		if !paramTypes[i].IsValueType() {
			return Signal{}, errors.Errorf("could not register signal %s, parameter %d has type %s, which can not hold values", name, i, paramTypes[i])
		}
	}
	if flags&(SignalRunFirst|SignalRunLast|SignalRunCleanup) == 0 {
		flags |= SignalRunLast
	}

	e.signals.lock.Lock()
	defer e.signals.lock.Unlock()

	if existing := e.signals.find(owner, name); existing != nil {
		return Signal{}, errors.Errorf("could not register signal %s on %s, already registered on %s", name, owner, existing.owner)
	}

	e.signals.counter++
	node := &signalNode{
		id:         e.signals.counter,
		name:       name,
		owner:      owner,
		flags:      flags,
		returnType: returnType,
		paramTypes: append([]Type(nil), paramTypes...),
	}
	e.signals.byOwner[owner.node] = append(e.signals.byOwner[owner.node], node)

	return Signal{node: node}, nil
}

func parseDetailedName(detailedName string) (string, string, bool) {
	name, detail, hasDetail := strings.Cut(detailedName, "::")
	if hasDetail && detail == "" {
		return "", "", false
	}
	return canonicalName(name), detail, true
}

// LookupSignal resolves "name" or "name::detail" on t and its ancestors. A
// detail is only accepted for detailed signals.
func (e *engine) LookupSignal(detailedName string, t Type) (Signal, string, bool) {
	name, detail, ok := parseDetailedName(detailedName)
	if !ok || !t.IsValid() {
		return Signal{}, "", false
	}

	e.signals.lock.RLock()
	node := e.signals.find(t, name)
	e.signals.lock.RUnlock()

	if node == nil {
		return Signal{}, "", false
	}
	if detail != "" && node.flags&SignalDetailed == 0 {
		return Signal{}, "", false
	}
	return Signal{node: node}, detail, true
}

// ListSignals returns the signals declared on t itself, in registration
// order.
func (e *engine) ListSignals(t Type) []Signal {
	e.signals.lock.RLock()
	defer e.signals.lock.RUnlock()

	nodes := e.signals.byOwner[t.node]
	signals := make([]Signal, len(nodes))
	for i := range nodes {
		signals[i] = Signal{node: nodes[i]}
	}
	return signals
}

func (e *engine) registerBuiltinSignals() {
	_, err := e.RegisterSignal(
		e.FundamentalType(KindObject),
		"notify",
		SignalRunFirst|SignalNoRecurse|SignalDetailed|SignalAction|SignalNoHooks,
		Type{},
		e.FundamentalType(KindParam),
	)
	if err != nil {
		panic(errors.Wrap(err, "could not register notify signal"))
	}
}
