// Package qglib moves Go values in and out of dynamically typed containers
// and connects Go funcs to signals of objects from a GObject style type
// system, converting signal arguments and return values on the way.
package qglib

import (
	internal "github.com/jerbob92/go-qglib/internal"
)

type (
	Kind           = internal.Kind
	Type           = internal.Type
	Value          = internal.Value
	ValueVTable    = internal.ValueVTable
	TransformFunc  = internal.TransformFunc
	EnumValue      = internal.EnumValue
	UTF16String    = internal.UTF16String
	Object         = internal.Object
	ObjectLike     = internal.ObjectLike
	ParamSpec      = internal.ParamSpec
	ParamFlags     = internal.ParamFlags
	Signal         = internal.Signal
	SignalFlags    = internal.SignalFlags
	SignalQuery    = internal.SignalQuery
	SignalHandler  = internal.SignalHandler
	ConnectFlags   = internal.ConnectFlags
	Closure        = internal.Closure
	MarshalFunc    = internal.MarshalFunc
	InvocationHint = internal.InvocationHint

	DestroyNotifier = internal.DestroyNotifier
	Trackable       = internal.Trackable

	InvalidValueError         = internal.InvalidValueError
	InvalidTypeError          = internal.InvalidTypeError
	UnregisteredTypeError     = internal.UnregisteredTypeError
	TransformationFailedError = internal.TransformationFailedError
	ArityError                = internal.ArityError
	SignalResolutionError     = internal.SignalResolutionError
)

const (
	KindInvalid = internal.KindInvalid
	KindBool    = internal.KindBool
	KindChar    = internal.KindChar
	KindUChar   = internal.KindUChar
	KindInt     = internal.KindInt
	KindUInt    = internal.KindUInt
	KindLong    = internal.KindLong
	KindULong   = internal.KindULong
	KindInt64   = internal.KindInt64
	KindUInt64  = internal.KindUInt64
	KindFloat   = internal.KindFloat
	KindDouble  = internal.KindDouble
	KindString  = internal.KindString
	KindPointer = internal.KindPointer
	KindEnum    = internal.KindEnum
	KindFlags   = internal.KindFlags
	KindBoxed   = internal.KindBoxed
	KindParam   = internal.KindParam
	KindObject  = internal.KindObject
)

const (
	ParamReadable       = internal.ParamReadable
	ParamWritable       = internal.ParamWritable
	ParamReadWrite      = internal.ParamReadWrite
	ParamConstructOnly  = internal.ParamConstructOnly
	ParamExplicitNotify = internal.ParamExplicitNotify
)

const (
	SignalRunFirst   = internal.SignalRunFirst
	SignalRunLast    = internal.SignalRunLast
	SignalRunCleanup = internal.SignalRunCleanup
	SignalNoRecurse  = internal.SignalNoRecurse
	SignalDetailed   = internal.SignalDetailed
	SignalAction     = internal.SignalAction
	SignalNoHooks    = internal.SignalNoHooks
)

const (
	ConnectAfter = internal.ConnectAfter
	PassSender   = internal.PassSender
)

func TypeFor[T any](e Engine) Type {
	return internal.TypeFor[T](e)
}

func Get[T any](v *Value) (T, error) {
	return internal.Get[T](v)
}

func Set[T any](v *Value, x T) error {
	return internal.Set[T](v, x)
}

func GetOrZero[T any](v *Value) T {
	return internal.GetOrZero[T](v)
}

func SetOrWarn[T any](v *Value, x T) bool {
	return internal.SetOrWarn[T](v, x)
}

func GetProperty[T any](instance ObjectLike, name string) (T, error) {
	return internal.GetProperty[T](instance, name)
}

func NewParamSpec(name string, valueType Type, flags ParamFlags, defaultValue any) *ParamSpec {
	return internal.NewParamSpec(name, valueType, flags, defaultValue)
}

func NewUTF16String(s string) (UTF16String, error) {
	return internal.NewUTF16String(s)
}

func ParseSignalFlags(names ...string) (SignalFlags, error) {
	return internal.ParseSignalFlags(names...)
}

func NewClosure(marshal MarshalFunc, data any) *Closure {
	return internal.NewClosure(marshal, data)
}

func Connect(instance ObjectLike, detailedSignal string, receiver any, slot any, flags ConnectFlags) SignalHandler {
	return internal.Connect(instance, detailedSignal, receiver, slot, flags)
}

func ConnectClosure(instance ObjectLike, detailedSignal string, closure *Closure, flags ConnectFlags) SignalHandler {
	return internal.ConnectClosure(instance, detailedSignal, closure, flags)
}

func Disconnect(instance ObjectLike, detailedSignal string, receiver any, slot any) bool {
	return internal.Disconnect(instance, detailedSignal, receiver, slot)
}

func Emit(instance ObjectLike, detailedSignal string, args ...any) {
	internal.Emit(instance, detailedSignal, args...)
}

func EmitResult[R any](instance ObjectLike, detailedSignal string, args ...any) R {
	return internal.EmitResult[R](instance, detailedSignal, args...)
}
