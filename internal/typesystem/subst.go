package typesystem

import (
	"fmt"
	"strings"
)

// GenericArg is one entry of a substitution: either a concrete type or a
// const-generic value (raw little-endian bytes of the given type).
type GenericArg struct {
	Type  *Type
	Const *ConstArg
}

// ConstArg is a const-generic argument value.
type ConstArg struct {
	Bytes []byte
	Type  *Type
}

// TypeArg builds a type argument.
func TypeArg(t *Type) GenericArg { return GenericArg{Type: t} }

// ConstUsizeArg builds a usize const-generic argument, the common case.
func ConstUsizeArg(v uint64) GenericArg {
	return GenericArg{Const: &ConstArg{Bytes: EncodeUint(v, Usize.Size()), Type: Usize}}
}

// Substitution is an ordered mapping from generic parameter position to a
// concrete argument. Two evaluations of the same constant under different
// substitutions are distinct cache and cycle-guard entries.
type Substitution []GenericArg

// EmptySubst is the substitution of non-generic items.
var EmptySubst = Substitution(nil)

// TypeAt returns the type argument at position i.
func (s Substitution) TypeAt(i int) (*Type, bool) {
	if i >= len(s) || s[i].Type == nil {
		return nil, false
	}
	return s[i].Type, true
}

// ConstAt returns the const-generic argument at position i as an unsigned
// scalar value.
func (s Substitution) ConstAt(i int) (uint64, bool) {
	if i >= len(s) || s[i].Const == nil {
		return 0, false
	}
	return DecodeUint(s[i].Const.Bytes), true
}

// Key renders the canonical form used in cache and cycle-guard keys.
func (s Substitution) Key() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, a := range s {
		switch {
		case a.Type != nil:
			parts[i] = a.Type.String()
		case a.Const != nil:
			parts[i] = fmt.Sprintf("%d:%s", DecodeUint(a.Const.Bytes), a.Const.Type)
		default:
			parts[i] = "_"
		}
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
