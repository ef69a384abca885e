package qglib

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
)

type IEngine interface {
	Logger() logging.LeveledLogger

	FundamentalType(kind Kind) Type
	TypeFromName(name string) Type
	TypeOf(goType reflect.Type) Type
	RegisterGoType(goType reflect.Type, t Type) error
	RegisterType(name string, parent Type) (Type, error)
	RegisterEnum(name string, goType reflect.Type, values ...EnumValue) (Type, error)
	RegisterFlags(name string, goType reflect.Type, values ...EnumValue) (Type, error)
	RegisterBoxedType(name string, goType reflect.Type, copyFunc func(any) any) (Type, error)
	RegisterObjectType(name string, parent Type, properties ...*ParamSpec) (Type, error)

	RegisterValueVTable(t Type, vtable ValueVTable)
	LookupValueVTable(t Type) ValueVTable

	RegisterTransformFunc(src Type, dst Type, fn TransformFunc)
	CanTransform(src Type, dst Type) bool

	RegisterSignal(owner Type, name string, flags SignalFlags, returnType Type, paramTypes ...Type) (Signal, error)
	LookupSignal(detailedName string, t Type) (Signal, string, bool)
	ListSignals(t Type) []Signal

	NewValue(t Type) *Value
	ValueOf(x any) (*Value, error)
	NewObject(t Type, properties map[string]any) (*Object, error)
	CreateClosure(fn any, passSender bool) (*Closure, error)
}

type engine struct {
	config IEngineConfig
	logger logging.LeveledLogger

	typesLock    sync.RWMutex
	typeCounter  uint32
	typesByName  map[string]*typeNode
	goTypes      map[reflect.Type]*typeNode
	fundamentals [kindCount]*typeNode

	vtables    *valueVTableDispatcher
	transforms *transformTable
	signals    *signalRegistry

	handlerCounter uint64
}

// CreateEngine returns a new engine with all fundamental types, their value
// vtables and the builtin transformations registered. A nil config gives the
// default config.
func CreateEngine(config IEngineConfig) IEngine {
	if config == nil {
		config = NewConfig()
	}

	e := &engine{
		config:      config,
		logger:      config.GetLoggerFactory().NewLogger("qglib"),
		typesByName: map[string]*typeNode{},
		goTypes:     map[reflect.Type]*typeNode{},
		vtables:     newValueVTableDispatcher(),
		transforms:  newTransformTable(),
		signals:     newSignalRegistry(),
	}

	e.registerFundamentals()
	e.registerFundamentalVTables()
	e.registerBuiltinTransforms()
	e.registerBuiltinSignals()

	return e
}

var fallbackLogger = logging.NewDefaultLoggerFactory().NewLogger("qglib")

// loggerFor returns the logger of the engine t belongs to.
func loggerFor(t Type) logging.LeveledLogger {
	if e := t.engine(); e != nil {
		return e.logger
	}
	return fallbackLogger
}

func (e *engine) Logger() logging.LeveledLogger {
	return e.logger
}

// nextTypeID must be called with typesLock held, or before the engine is
// shared.
func (e *engine) nextTypeID() uint32 {
	e.typeCounter++
	return e.typeCounter
}

func (e *engine) nextHandlerID() uint64 {
	return atomic.AddUint64(&e.handlerCounter, 1)
}
