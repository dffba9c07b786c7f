package xdr

import (
	"fmt"
	"sort"
)

// Symbol is the native form of an enum value.
type Symbol string

// Enum maps symbols to their wire constants and back.
type Enum struct {
	name    string
	consts  map[Symbol]uint32
	symbols map[uint32]Symbol
}

// NewEnum builds the mapping for table. Two symbols sharing a constant would
// make decoding ambiguous and are rejected.
func NewEnum(name string, table map[Symbol]uint32) (*Enum, error) {
	e := &Enum{
		name:    name,
		consts:  make(map[Symbol]uint32, len(table)),
		symbols: make(map[uint32]Symbol, len(table)),
	}

	for sym, c := range table {
		if other, ok := e.symbols[c]; ok {
			return nil, fmt.Errorf("%w: enum %s: %s and %s share constant %d",
				ErrInvalidEnumValue, name, other, sym, c)
		}

		e.consts[sym] = c
		e.symbols[c] = sym
	}

	return e, nil
}

// MustEnum is NewEnum for package level schema definitions.
func MustEnum(name string, table map[Symbol]uint32) *Enum {
	e, err := NewEnum(name, table)
	if err != nil {
		panic(err)
	}

	return e
}

func (e *Enum) Name() string {
	return e.name
}

// Const returns the wire constant of sym.
func (e *Enum) Const(sym Symbol) (uint32, bool) {
	c, ok := e.consts[sym]
	return c, ok
}

// Symbols returns the symbols ordered by wire constant.
func (e *Enum) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(e.consts))
	for sym := range e.consts {
		syms = append(syms, sym)
	}

	sort.Slice(syms, func(i, j int) bool {
		return e.consts[syms[i]] < e.consts[syms[j]]
	})

	return syms
}

// Pack encodes a Symbol (or a string naming one) as its wire constant.
func (e *Enum) Pack(v interface{}) ([]byte, error) {
	var sym Symbol

	switch s := v.(type) {
	case Symbol:
		sym = s
	case string:
		sym = Symbol(s)
	default:
		return nil, fmt.Errorf("%w: enum %s: %v (%T)", ErrInvalidEnumValue, e.name, v, v)
	}

	c, ok := e.consts[sym]
	if !ok {
		return nil, fmt.Errorf("%w: enum %s: %q", ErrInvalidEnumValue, e.name, sym)
	}

	return PackUint(int64(c))
}

// Packer returns e.Pack as a Packer.
func (e *Enum) Packer() Packer {
	return e.Pack
}

func (e *Enum) Unpacker() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		c, rest, err := UnpackUint(b)
		if err != nil {
			return nil, b, err
		}

		sym, ok := e.symbols[c]
		if !ok {
			return nil, b, fmt.Errorf("%w: enum %s: constant %d", ErrInvalidEnumValue, e.name, c)
		}

		return sym, rest, nil
	}
}
