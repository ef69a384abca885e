package qglib

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

type EnumValue struct {
	Value int64
	Name  string
	Nick  string
}

type enumClass struct {
	flags   bool
	values  []EnumValue
	byValue map[int64]int
	byName  map[string]int
}

func newEnumClass(flags bool, values []EnumValue) (*enumClass, error) {
	ec := &enumClass{
		flags:   flags,
		values:  append([]EnumValue(nil), values...),
		byValue: map[int64]int{},
		byName:  map[string]int{},
	}

	for i := range ec.values {
		val := ec.values[i]
		if val.Name == "" {
			return nil, errors.Errorf("enum value %d has no name", val.Value)
		}
		if flags && (val.Value < 0 || val.Value > math.MaxUint32) {
			return nil, errors.Errorf("flags value %s (%d) does not fit in 32 bits", val.Name, val.Value)
		}
		if !flags && (val.Value < math.MinInt32 || val.Value > math.MaxInt32) {
			return nil, errors.Errorf("enum value %s (%d) does not fit in 32 bits", val.Name, val.Value)
		}
		if _, ok := ec.byName[val.Name]; ok {
			return nil, errors.Errorf("enum value %s was already registered", val.Name)
		}

		ec.byName[val.Name] = i
		if val.Nick != "" {
			if _, ok := ec.byName[val.Nick]; ok {
				return nil, errors.Errorf("enum nick %s was already registered", val.Nick)
			}
			ec.byName[val.Nick] = i
		}

		// Aliases are allowed, the first registered name wins.
		if _, ok := ec.byValue[val.Value]; !ok {
			ec.byValue[val.Value] = i
		}
	}

	return ec, nil
}

func (ec *enumClass) format(v int64) string {
	if !ec.flags {
		if i, ok := ec.byValue[v]; ok {
			return ec.values[i].Name
		}
		return fmt.Sprintf("%d", v)
	}

	if v == 0 {
		if i, ok := ec.byValue[0]; ok {
			return ec.values[i].Name
		}
		return "0"
	}

	var names []string
	rest := uint32(v)
	for i := range ec.values {
		bits := uint32(ec.values[i].Value)
		if bits != 0 && rest&bits == bits {
			names = append(names, ec.values[i].Name)
			rest &^= bits
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", rest))
	}
	return strings.Join(names, " | ")
}

func (ec *enumClass) parse(s string) (int64, bool) {
	if !ec.flags {
		i, ok := ec.byName[strings.TrimSpace(s)]
		if !ok {
			return 0, false
		}
		return ec.values[i].Value, true
	}

	var v int64
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" || part == "0" {
			continue
		}
		i, ok := ec.byName[part]
		if !ok {
			return 0, false
		}
		v |= ec.values[i].Value
	}
	return v, true
}

func checkEnumGoType(name string, goType reflect.Type) error {
	if goType == nil {
		return nil
	}
	switch goType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	}
	return errors.Errorf("could not register %s, Go type %s is not an integer type", name, goType)
}

// RegisterEnum registers an enumeration type. When goType is given, Go values
// of that type are stored as the new enum type.
func (e *engine) RegisterEnum(name string, goType reflect.Type, values ...EnumValue) (Type, error) {
	return e.registerEnumType(name, KindEnum, goType, values)
}

// RegisterFlags registers a bit flags type. When goType is given, Go values
// of that type are stored as the new flags type.
func (e *engine) RegisterFlags(name string, goType reflect.Type, values ...EnumValue) (Type, error) {
	return e.registerEnumType(name, KindFlags, goType, values)
}

func (e *engine) registerEnumType(name string, kind Kind, goType reflect.Type, values []EnumValue) (Type, error) {
	if err := checkEnumGoType(name, goType); err != nil {
		return Type{}, err
	}

	ec, err := newEnumClass(kind == KindFlags, values)
	if err != nil {
		return Type{}, errors.Wrapf(err, "could not register %s", name)
	}

	t, err := e.registerTypeNode(name, e.FundamentalType(kind), func(n *typeNode) {
		n.enum = ec
	})
	if err != nil {
		return Type{}, err
	}

	if goType != nil {
		if err := e.RegisterGoType(goType, t); err != nil {
			return Type{}, err
		}
	}

	return t, nil
}

// EnumValues returns the values of an enum or flags type in registration
// order.
func (t Type) EnumValues() []EnumValue {
	if t.node == nil || t.node.enum == nil {
		return nil
	}
	return append([]EnumValue(nil), t.node.enum.values...)
}

// EnumValueByName finds an enum value by its name or nick.
func (t Type) EnumValueByName(name string) (EnumValue, bool) {
	if t.node == nil || t.node.enum == nil {
		return EnumValue{}, false
	}
	i, ok := t.node.enum.byName[name]
	if !ok {
		return EnumValue{}, false
	}
	return t.node.enum.values[i], true
}

func (t Type) EnumValueOf(v int64) (EnumValue, bool) {
	if t.node == nil || t.node.enum == nil {
		return EnumValue{}, false
	}
	i, ok := t.node.enum.byValue[v]
	if !ok {
		return EnumValue{}, false
	}
	return t.node.enum.values[i], true
}
