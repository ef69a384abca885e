package qglib

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type ParamFlags uint

const (
	ParamReadable ParamFlags = 1 << iota
	ParamWritable
	ParamConstructOnly
	// ParamExplicitNotify suppresses notify when a set does not change the
	// value.
	ParamExplicitNotify
)

const ParamReadWrite = ParamReadable | ParamWritable

var propertyNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// ParamSpec describes an object property.
type ParamSpec struct {
	Name      string
	Nick      string
	Blurb     string
	ValueType Type
	Flags     ParamFlags
	Default   any

	owner Type
}

func NewParamSpec(name string, valueType Type, flags ParamFlags, defaultValue any) *ParamSpec {
	return &ParamSpec{
		Name:      name,
		ValueType: valueType,
		Flags:     flags,
		Default:   defaultValue,
	}
}

// Owner returns the object type that declared the property.
func (p *ParamSpec) Owner() Type {
	return p.owner
}

func (p *ParamSpec) String() string {
	return fmt.Sprintf("%s::%s (%s)", p.owner, p.Name, p.ValueType)
}

func canonicalName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

func (p *ParamSpec) validate() error {
	p.Name = canonicalName(p.Name)
	if !propertyNameRegex.MatchString(p.Name) {
		return errors.Errorf("invalid property name %q", p.Name)
	}
	if !p.ValueType.IsValueType() {
		return errors.Errorf("property %s has type %s, which can not hold values", p.Name, p.ValueType)
	}
	if p.Default != nil {
		v, err := p.defaultValue()
		if err != nil {
			return errors.Wrapf(err, "invalid default for property %s", p.Name)
		}
		v.Unset()
	}
	return nil
}

func (p *ParamSpec) defaultValue() (*Value, error) {
	v := &Value{}
	if err := v.Init(p.ValueType); err != nil {
		return nil, err
	}
	if p.Default != nil {
		if err := v.SetData(reflect.ValueOf(p.Default)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FindProperty looks up a property declared on t or one of its ancestors.
func (t Type) FindProperty(name string) *ParamSpec {
	name = canonicalName(name)
	for n := t.node; n != nil; n = n.parent {
		for _, p := range n.properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Properties returns all properties of t, those of the ancestors first.
func (t Type) Properties() []*ParamSpec {
	var chain []*typeNode
	for n := t.node; n != nil; n = n.parent {
		chain = append(chain, n)
	}

	var properties []*ParamSpec
	for i := len(chain) - 1; i >= 0; i-- {
		properties = append(properties, chain[i].properties...)
	}
	return properties
}
