package qglib

import (
	"reflect"
	"regexp"
	"unsafe"

	"github.com/pkg/errors"
)

// Kind identifies the fundamental type a Type derives from. The fundamental
// decides how a Value of the type stores its payload.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindUChar
	KindInt
	KindUInt
	KindLong
	KindULong
	KindInt64
	KindUInt64
	KindFloat
	KindDouble
	KindString
	KindPointer
	KindEnum
	KindFlags
	KindBoxed
	KindParam
	KindObject
	kindCount
)

var fundamentalNames = [kindCount]string{
	KindInvalid: "",
	KindBool:    "gboolean",
	KindChar:    "gchar",
	KindUChar:   "guchar",
	KindInt:     "gint",
	KindUInt:    "guint",
	KindLong:    "glong",
	KindULong:   "gulong",
	KindInt64:   "gint64",
	KindUInt64:  "guint64",
	KindFloat:   "gfloat",
	KindDouble:  "gdouble",
	KindString:  "gchararray",
	KindPointer: "gpointer",
	KindEnum:    "GEnum",
	KindFlags:   "GFlags",
	KindBoxed:   "GBoxed",
	KindParam:   "GParam",
	KindObject:  "GObject",
}

func (k Kind) String() string {
	if k >= kindCount || k == KindInvalid {
		return "invalid"
	}
	return fundamentalNames[k]
}

func (k Kind) isNumeric() bool {
	return k >= KindChar && k <= KindDouble || k == KindEnum || k == KindFlags
}

var typeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_+\-]*$`)

type typeNode struct {
	engine   *engine
	id       uint32
	name     string
	kind     Kind
	parent   *typeNode
	depth    int
	abstract bool
	children []*typeNode

	// Only set on the types that need them, derived types inherit them.
	enum       *enumClass
	boxedCopy  func(any) any
	properties []*ParamSpec

	// The first Go type registered for a derived type, values of the type
	// are handed out as this Go type when no other type is asked for.
	goType reflect.Type
}

// Type is a handle to a registered type. The zero Type is the None type, it
// is not valid and can not hold values.
type Type struct {
	node *typeNode
}

func (t Type) IsValid() bool {
	return t.node != nil
}

func (t Type) ID() uint32 {
	if t.node == nil {
		return 0
	}
	return t.node.id
}

func (t Type) Name() string {
	if t.node == nil {
		return ""
	}
	return t.node.name
}

func (t Type) String() string {
	if t.node == nil {
		return "<invalid>"
	}
	return t.node.name
}

func (t Type) Kind() Kind {
	if t.node == nil {
		return KindInvalid
	}
	return t.node.kind
}

func (t Type) Parent() Type {
	if t.node == nil {
		return Type{}
	}
	return Type{node: t.node.parent}
}

func (t Type) Depth() int {
	if t.node == nil {
		return 0
	}
	return t.node.depth
}

func (t Type) Fundamental() Type {
	if t.node == nil {
		return Type{}
	}
	n := t.node
	for n.parent != nil {
		n = n.parent
	}
	return Type{node: n}
}

func (t Type) IsFundamental() bool {
	return t.node != nil && t.node.parent == nil
}

func (t Type) IsDerived() bool {
	return t.node != nil && t.node.parent != nil
}

// IsA reports whether t is other or derives from it.
func (t Type) IsA(other Type) bool {
	if t.node == nil || other.node == nil {
		return false
	}
	if t.node.depth < other.node.depth {
		return false
	}
	n := t.node
	for n.depth > other.node.depth {
		n = n.parent
	}
	return n == other.node
}

func (t Type) IsAbstract() bool {
	return t.node != nil && t.node.abstract
}

// IsValueType reports whether a Value can be initialized with the type.
func (t Type) IsValueType() bool {
	return t.node != nil && !t.node.abstract
}

func (t Type) IsEnum() bool {
	return t.Kind() == KindEnum
}

func (t Type) IsFlags() bool {
	return t.Kind() == KindFlags
}

func (t Type) IsObject() bool {
	return t.Kind() == KindObject
}

func (t Type) IsString() bool {
	return t.Kind() == KindString
}

func (t Type) IsBoxed() bool {
	return t.Kind() == KindBoxed
}

// Children returns the types directly derived from t.
func (t Type) Children() []Type {
	if t.node == nil {
		return nil
	}
	t.node.engine.typesLock.RLock()
	defer t.node.engine.typesLock.RUnlock()

	children := make([]Type, len(t.node.children))
	for i := range t.node.children {
		children[i] = Type{node: t.node.children[i]}
	}
	return children
}

func (t Type) engine() *engine {
	if t.node == nil {
		return nil
	}
	return t.node.engine
}

// ObjectLike is implemented by *Object and by every struct that embeds it.
type ObjectLike interface {
	AsObject() *Object
}

var (
	objectLikeType = reflect.TypeOf((*ObjectLike)(nil)).Elem()
	objectPtrType  = reflect.TypeOf((*Object)(nil))
	paramSpecType  = reflect.TypeOf((*ParamSpec)(nil))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

func (e *engine) registerFundamentals() {
	for k := KindBool; k < kindCount; k++ {
		n := &typeNode{
			engine: e,
			id:     e.nextTypeID(),
			name:   fundamentalNames[k],
			kind:   k,
		}
		switch k {
		case KindEnum, KindFlags, KindBoxed:
			n.abstract = true
		}
		e.fundamentals[k] = n
		e.typesByName[n.name] = n
	}

	goTypes := map[reflect.Type]Kind{
		reflect.TypeOf(false):               KindBool,
		reflect.TypeOf(int8(0)):             KindChar,
		reflect.TypeOf(uint8(0)):            KindUChar,
		reflect.TypeOf(int32(0)):            KindInt,
		reflect.TypeOf(uint32(0)):           KindUInt,
		reflect.TypeOf(int(0)):              KindLong,
		reflect.TypeOf(uint(0)):             KindULong,
		reflect.TypeOf(int64(0)):            KindInt64,
		reflect.TypeOf(uint64(0)):           KindUInt64,
		reflect.TypeOf(float32(0)):          KindFloat,
		reflect.TypeOf(float64(0)):          KindDouble,
		reflect.TypeOf(""):                  KindString,
		reflect.TypeOf(UTF16String(nil)):    KindString,
		reflect.TypeOf(unsafe.Pointer(nil)): KindPointer,
		reflect.TypeOf(uintptr(0)):          KindPointer,
		objectPtrType:                       KindObject,
		paramSpecType:                       KindParam,
	}
	for goType, k := range goTypes {
		e.goTypes[goType] = e.fundamentals[k]
	}
}

func (e *engine) FundamentalType(kind Kind) Type {
	if kind == KindInvalid || kind >= kindCount {
		return Type{}
	}
	return Type{node: e.fundamentals[kind]}
}

func (e *engine) TypeFromName(name string) Type {
	e.typesLock.RLock()
	defer e.typesLock.RUnlock()
	return Type{node: e.typesByName[name]}
}

// TypeOf maps a Go type to the type its values are stored as. Types that were
// not registered with RegisterGoType fall back on their reflect.Kind.
func (e *engine) TypeOf(goType reflect.Type) Type {
	if goType == nil {
		return Type{}
	}

	e.typesLock.RLock()
	n, ok := e.goTypes[goType]
	e.typesLock.RUnlock()
	if ok {
		return Type{node: n}
	}

	if goType.Implements(objectLikeType) {
		return e.FundamentalType(KindObject)
	}

	switch goType.Kind() {
	case reflect.Bool:
		return e.FundamentalType(KindBool)
	case reflect.Int8:
		return e.FundamentalType(KindChar)
	case reflect.Uint8:
		return e.FundamentalType(KindUChar)
	case reflect.Int16, reflect.Int32:
		return e.FundamentalType(KindInt)
	case reflect.Uint16, reflect.Uint32:
		return e.FundamentalType(KindUInt)
	case reflect.Int:
		return e.FundamentalType(KindLong)
	case reflect.Uint:
		return e.FundamentalType(KindULong)
	case reflect.Int64:
		return e.FundamentalType(KindInt64)
	case reflect.Uint64:
		return e.FundamentalType(KindUInt64)
	case reflect.Float32:
		return e.FundamentalType(KindFloat)
	case reflect.Float64:
		return e.FundamentalType(KindDouble)
	case reflect.String:
		return e.FundamentalType(KindString)
	case reflect.Uintptr, reflect.UnsafePointer:
		return e.FundamentalType(KindPointer)
	}

	return Type{}
}

// typeOfNative returns the dynamic type of a Go value. Objects report the
// type of the instance instead of the static GObject mapping.
func (e *engine) typeOfNative(in reflect.Value) Type {
	if !in.IsValid() {
		return Type{}
	}
	if in.Kind() == reflect.Interface {
		if in.IsNil() {
			return Type{}
		}
		in = in.Elem()
	}
	if in.Type().Implements(objectLikeType) && !(in.Kind() == reflect.Ptr && in.IsNil()) {
		if obj := in.Interface().(ObjectLike).AsObject(); obj != nil {
			return obj.Type()
		}
	}
	if in.Type() == paramSpecType && !in.IsNil() {
		return e.FundamentalType(KindParam)
	}
	return e.TypeOf(in.Type())
}

// RegisterGoType makes t the type Go values of goType are stored as.
func (e *engine) RegisterGoType(goType reflect.Type, t Type) error {
	if goType == nil {
		return errors.Errorf("could not register Go type mapping for %s, no Go type given", t)
	}
	if !t.IsValid() {
		return errors.Errorf("could not register Go type %s, invalid type given", goType)
	}
	if t.node.engine != e {
		return errors.Errorf("could not register Go type %s, type %s belongs to another engine", goType, t)
	}

	e.typesLock.Lock()
	defer e.typesLock.Unlock()

	if existing, ok := e.goTypes[goType]; ok && existing != t.node {
		if existing.parent == nil {
			return errors.Errorf("could not register Go type %s, it is reserved for fundamental type %s", goType, existing.name)
		}
		return errors.Errorf("could not register Go type %s, already registered as %s", goType, existing.name)
	}
	e.goTypes[goType] = t.node
	if t.node.parent != nil && t.node.goType == nil {
		t.node.goType = goType
	}
	return nil
}

func (t Type) naturalGoType() reflect.Type {
	if t.node == nil {
		return nil
	}
	for n := t.node; n.parent != nil; n = n.parent {
		if n.goType != nil {
			return n.goType
		}
	}
	return nil
}

func (e *engine) registerTypeNode(name string, parent Type, setup func(n *typeNode)) (Type, error) {
	if !typeNameRegex.MatchString(name) {
		return Type{}, errors.Errorf("could not register type %q, invalid type name", name)
	}
	if !parent.IsValid() {
		return Type{}, errors.Errorf("could not register type %s, invalid parent type", name)
	}
	if parent.node.engine != e {
		return Type{}, errors.Errorf("could not register type %s, parent type %s belongs to another engine", name, parent)
	}

	e.typesLock.Lock()
	defer e.typesLock.Unlock()

	if _, ok := e.typesByName[name]; ok {
		return Type{}, errors.Errorf("could not register type %s, a type with that name already exists", name)
	}

	n := &typeNode{
		engine:    e,
		id:        e.nextTypeID(),
		name:      name,
		kind:      parent.node.kind,
		parent:    parent.node,
		depth:     parent.node.depth + 1,
		enum:      parent.node.enum,
		boxedCopy: parent.node.boxedCopy,
	}
	if setup != nil {
		setup(n)
	}

	parent.node.children = append(parent.node.children, n)
	e.typesByName[name] = n
	return Type{node: n}, nil
}

// RegisterType registers a plain type derived from parent. Its values are
// stored the way the parent stores them.
func (e *engine) RegisterType(name string, parent Type) (Type, error) {
	if parent.IsEnum() && parent.node.enum == nil || parent.IsFlags() && parent.node.enum == nil {
		return Type{}, errors.Errorf("could not register type %s, use RegisterEnum or RegisterFlags to derive from %s", name, parent)
	}
	if parent.IsBoxed() && parent.node.boxedCopy == nil {
		return Type{}, errors.Errorf("could not register type %s, use RegisterBoxedType to derive from %s", name, parent)
	}
	return e.registerTypeNode(name, parent, nil)
}

// RegisterBoxedType registers a copyable Go type. The copy function is used
// whenever a Value holding the type is copied, when it is nil the Go value is
// copied by assignment.
func (e *engine) RegisterBoxedType(name string, goType reflect.Type, copyFunc func(any) any) (Type, error) {
	if goType == nil {
		return Type{}, errors.Errorf("could not register boxed type %s, no Go type given", name)
	}
	if copyFunc == nil {
		copyFunc = func(in any) any {
			return in
		}
	}

	t, err := e.registerTypeNode(name, e.FundamentalType(KindBoxed), func(n *typeNode) {
		n.boxedCopy = copyFunc
	})
	if err != nil {
		return Type{}, err
	}

	if err := e.RegisterGoType(goType, t); err != nil {
		return Type{}, err
	}
	return t, nil
}

// RegisterObjectType registers an instantiable object type. Properties of the
// parent types are inherited.
func (e *engine) RegisterObjectType(name string, parent Type, properties ...*ParamSpec) (Type, error) {
	if !parent.IsValid() {
		parent = e.FundamentalType(KindObject)
	}
	if !parent.IsObject() {
		return Type{}, errors.Errorf("could not register object type %s, parent %s is not an object type", name, parent)
	}

	seen := map[string]bool{}
	for i := range properties {
		if properties[i] == nil {
			return Type{}, errors.Errorf("could not register object type %s, property %d is nil", name, i)
		}
		if err := properties[i].validate(); err != nil {
			return Type{}, errors.Wrapf(err, "could not register object type %s", name)
		}
		if seen[properties[i].Name] {
			return Type{}, errors.Errorf("could not register object type %s, property %s declared twice", name, properties[i].Name)
		}
		seen[properties[i].Name] = true
	}

	return e.registerTypeNode(name, parent, func(n *typeNode) {
		n.properties = properties
		for i := range properties {
			properties[i].owner = Type{node: n}
		}
	})
}

// TypeFor returns the type Go values of type T are stored as.
func TypeFor[T any](e IEngine) Type {
	return e.TypeOf(reflect.TypeOf((*T)(nil)).Elem())
}
