package qglib

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// TransformFunc converts the payload of src into dst. Both values are
// initialized, dst with the destination type.
type TransformFunc func(src *Value, dst *Value) error

type transformTable struct {
	lock  sync.RWMutex
	funcs map[[2]*typeNode]TransformFunc
}

func newTransformTable() *transformTable {
	return &transformTable{
		funcs: map[[2]*typeNode]TransformFunc{},
	}
}

func (tt *transformTable) register(src Type, dst Type, fn TransformFunc) {
	tt.lock.Lock()
	defer tt.lock.Unlock()
	tt.funcs[[2]*typeNode{src.node, dst.node}] = fn
}

// lookup finds the most specific transformation, walking the ancestry of the
// source type first.
func (tt *transformTable) lookup(src Type, dst Type) TransformFunc {
	tt.lock.RLock()
	defer tt.lock.RUnlock()

	for s := src.node; s != nil; s = s.parent {
		for d := dst.node; d != nil; d = d.parent {
			if fn, ok := tt.funcs[[2]*typeNode{s, d}]; ok {
				return fn
			}
		}
	}
	return nil
}

func (tt *transformTable) transform(src *Value, dst *Value) (err error) {
	if src.typ.IsA(dst.typ) {
		releaseData(dst.typ, dst.data)
		dst.data = copyData(src.typ, src.data)
		return nil
	}

	fn := tt.lookup(src.typ, dst.typ)
	if fn == nil {
		return errors.Errorf("no transformation registered from %s to %s", src.typ, dst.typ)
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn(src, dst)
}

// RegisterTransformFunc registers fn to convert values of src, and types
// derived from it, into values of dst. An earlier registration for the same
// pair is replaced.
func (e *engine) RegisterTransformFunc(src Type, dst Type, fn TransformFunc) {
	if !src.IsValid() || !dst.IsValid() || fn == nil {
		e.logger.Warnf("could not register transformation from %s to %s", src, dst)
		return
	}
	e.transforms.register(src, dst, fn)
}

func (e *engine) CanTransform(src Type, dst Type) bool {
	if !src.IsValid() || !dst.IsValid() {
		return false
	}
	if src.IsA(dst) {
		return true
	}
	return e.transforms.lookup(src, dst) != nil
}

func transformNumeric(src *Value, dst *Value) error {
	dst.data = convertNumeric(dst.typ.Kind(), src.data)
	return nil
}

func transformToString(src *Value, dst *Value) error {
	switch src.typ.Kind() {
	case KindBool:
		if src.data.(bool) {
			dst.data = "TRUE"
		} else {
			dst.data = "FALSE"
		}
	case KindFloat, KindDouble:
		dst.data = strconv.FormatFloat(toFloat64(src.data), 'f', 6, 64)
	case KindEnum, KindFlags:
		if src.typ.node.enum == nil {
			dst.data = fmt.Sprintf("%d", src.data)
		} else {
			dst.data = src.typ.node.enum.format(toInt64(src.data))
		}
	default:
		dst.data = fmt.Sprintf("%d", src.data)
	}
	return nil
}

func transformFromString(src *Value, dst *Value) error {
	s := strings.TrimSpace(src.data.(string))
	kind := dst.typ.Kind()

	switch kind {
	case KindBool:
		switch strings.ToLower(s) {
		case "true", "1":
			dst.data = true
		case "false", "0":
			dst.data = false
		default:
			return errors.Errorf("%q is not a boolean", s)
		}
	case KindFloat, KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		dst.data = convertNumeric(kind, f)
	case KindUChar, KindUInt, KindULong, KindUInt64:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		dst.data = storeUnsigned(kind, u)
	case KindEnum, KindFlags:
		if dst.typ.node.enum != nil {
			if v, ok := dst.typ.node.enum.parse(s); ok {
				dst.data = storeSigned(kind, v)
				return nil
			}
		}
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return errors.Errorf("%q is not a value of %s", s, dst.typ)
		}
		dst.data = storeSigned(kind, i)
	default:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		dst.data = storeSigned(kind, i)
	}
	return nil
}

func (e *engine) registerBuiltinTransforms() {
	numeric := []Kind{KindBool}
	for k := KindBool; k < kindCount; k++ {
		if k.isNumeric() {
			numeric = append(numeric, k)
		}
	}

	stringType := e.FundamentalType(KindString)
	for _, src := range numeric {
		for _, dst := range numeric {
			e.transforms.register(e.FundamentalType(src), e.FundamentalType(dst), transformNumeric)
		}
		e.transforms.register(e.FundamentalType(src), stringType, transformToString)
		e.transforms.register(stringType, e.FundamentalType(src), transformFromString)
	}
}
