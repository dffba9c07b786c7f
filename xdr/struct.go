package xdr

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/luma/xdrprobe/record"
)

// Field names the value an unpacker produces inside a record.
type Field struct {
	Name     string
	Unpacker Unpacker
}

// Struct decodes the fields in order into a fresh record.
//
// A decode that fails partway returns the record holding the fields decoded
// before the failure, together with the error.
func Struct(fields ...Field) Unpacker {
	us := make([]Unpacker, len(fields))
	for i, f := range fields {
		us[i] = f.Unpacker
	}

	return func(b []byte) (interface{}, []byte, error) {
		values, rest, err := unpackMany(us, b)

		r := record.New()
		for i, v := range values {
			r.Set(fields[i].Name, v)
		}

		if err != nil {
			return r, b, fmt.Errorf("field %s: %w", fields[len(values)].Name, err)
		}

		return r, rest, nil
	}
}

// Case is one arm of a discriminated union.
type Case struct {
	Value    interface{}
	Name     string
	Unpacker Unpacker
}

// Union builds an unpacker for a discriminated union. The discriminant is
// stored under disc.Name and the first case whose Value equals it decodes the
// arm. When no case matches def decodes the arm, or decoding fails with
// ErrUnknownDiscriminant if def is nil.
//
// Case values are compared by value across integer types, so a case written
// as 1 matches a uint32 discriminant of 1. Union rejects case lists that use
// the same value twice.
func Union(disc Field, cases []Case, def *Field) (Unpacker, error) {
	seen := make(map[interface{}]int, len(cases))

	for i, c := range cases {
		key, err := caseKey(c.Value)
		if err != nil {
			return nil, err
		}

		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: cases %s and %s both use %v",
				ErrDuplicateCase, cases[j].Name, c.Name, c.Value)
		}

		seen[key] = i
	}

	return func(b []byte) (interface{}, []byte, error) {
		r := record.New()

		d, rest, err := disc.Unpacker(b)
		if err != nil {
			return r, b, fmt.Errorf("discriminant %s: %w", disc.Name, err)
		}
		r.Set(disc.Name, d)

		arm := def
		if key, err := caseKey(d); err == nil {
			if i, ok := seen[key]; ok {
				arm = &Field{Name: cases[i].Name, Unpacker: cases[i].Unpacker}
			}
		}

		if arm == nil {
			return r, b, fmt.Errorf("%w: %s = %v", ErrUnknownDiscriminant, disc.Name, d)
		}

		v, rest, err := arm.Unpacker(rest)
		if err != nil {
			return r, b, fmt.Errorf("arm %s: %w", arm.Name, err)
		}
		r.Set(arm.Name, v)

		return r, rest, nil
	}, nil
}

// MustUnion is Union for package level schema definitions.
func MustUnion(disc Field, cases []Case, def *Field) Unpacker {
	u, err := Union(disc, cases, def)
	if err != nil {
		panic(err)
	}

	return u
}

// caseKey normalises a discriminant so that integers of different types
// compare equal.
func caseKey(v interface{}) (interface{}, error) {
	switch k := v.(type) {
	case string:
		return Symbol(k), nil
	case Symbol, bool:
		return k, nil
	case uint64:
		if n, err := toInt64(k); err == nil {
			return n, nil
		}
		return k, nil
	}

	if n, err := toInt64(v); err == nil {
		return n, nil
	}

	if v == nil || !reflect.TypeOf(v).Comparable() {
		return nil, fmt.Errorf("%w: %T cannot be a union case", ErrType, v)
	}

	return v, nil
}

// PackField names the record field a packer encodes.
type PackField struct {
	Name   string
	Packer Packer
}

// PackStruct encodes the named fields of a record in order.
func PackStruct(fields ...PackField) Packer {
	return func(v interface{}) ([]byte, error) {
		r, ok := v.(*record.Record)
		if !ok {
			return nil, typeError("*record.Record", v)
		}

		var buf bytes.Buffer
		for _, f := range fields {
			b, err := f.Packer(r.Get(f.Name))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			buf.Write(b)
		}

		return buf.Bytes(), nil
	}
}

// PackCase is one arm of a union packer.
type PackCase struct {
	Value  interface{}
	Name   string
	Packer Packer
}

// PackUnion encodes a record holding a discriminant and the matching arm,
// choosing the arm the same way Union does.
func PackUnion(disc PackField, cases []PackCase, def *PackField) (Packer, error) {
	seen := make(map[interface{}]int, len(cases))

	for i, c := range cases {
		key, err := caseKey(c.Value)
		if err != nil {
			return nil, err
		}

		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: cases %s and %s both use %v",
				ErrDuplicateCase, cases[j].Name, c.Name, c.Value)
		}
		seen[key] = i
	}

	return func(v interface{}) ([]byte, error) {
		r, ok := v.(*record.Record)
		if !ok {
			return nil, typeError("*record.Record", v)
		}

		d := r.Get(disc.Name)
		db, err := disc.Packer(d)
		if err != nil {
			return nil, fmt.Errorf("discriminant %s: %w", disc.Name, err)
		}

		arm := def
		if key, err := caseKey(d); err == nil {
			if i, ok := seen[key]; ok {
				arm = &PackField{Name: cases[i].Name, Packer: cases[i].Packer}
			}
		}

		if arm == nil {
			return nil, fmt.Errorf("%w: %s = %v", ErrUnknownDiscriminant, disc.Name, d)
		}

		ab, err := arm.Packer(r.Get(arm.Name))
		if err != nil {
			return nil, fmt.Errorf("arm %s: %w", arm.Name, err)
		}

		return append(db, ab...), nil
	}, nil
}

// MustPackUnion is PackUnion for package level schema definitions.
func MustPackUnion(disc PackField, cases []PackCase, def *PackField) Packer {
	p, err := PackUnion(disc, cases, def)
	if err != nil {
		panic(err)
	}

	return p
}
