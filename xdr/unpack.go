package xdr

import "fmt"

// Unpacker decodes one value from the front of b and returns it with the
// bytes that follow it. Unpackers hold no state, so a schema builds them
// once and shares them between struct and union definitions.
//
// On failure an Unpacker returns the input unchanged alongside the error.
type Unpacker func(b []byte) (interface{}, []byte, error)

func Uint() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackUint(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func Int() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackInt(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func Bool() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackBool(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func Uhyper() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackUhyper(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func Hyper() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackHyper(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func String() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackString(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

// Opaque decodes exactly n bytes of content plus their padding.
func Opaque(n int) Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackOpaque(n, b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

func VarOpaque() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		v, rest, err := UnpackVarOpaque(b)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}

// Void consumes nothing and yields nil.
func Void() Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		return nil, b, nil
	}
}

// Many runs each unpacker in turn, threading the remaining bytes through,
// and yields their results as a []interface{}.
//
// When one of them fails, the results decoded so far are returned along
// with the error and the bytes that were left before the failing unpacker.
func Many(us ...Unpacker) Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		return unpackMany(us, b)
	}
}

func unpackMany(us []Unpacker, b []byte) ([]interface{}, []byte, error) {
	results := make([]interface{}, 0, len(us))

	for i, u := range us {
		v, rest, err := u(b)
		if err != nil {
			return results, b, fmt.Errorf("element %d: %w", i, err)
		}

		results = append(results, v)
		b = rest
	}

	return results, b, nil
}

// Array decodes exactly n elements with u.
func Array(n int, u Unpacker) Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		results, rest, err := unpackRepeated(n, u, b)
		if err != nil {
			return nil, b, err
		}
		return results, rest, nil
	}
}

// VarArray decodes a leading element count followed by that many elements.
func VarArray(u Unpacker) Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		n, rest, err := UnpackUint(b)
		if err != nil {
			return nil, b, err
		}

		results, rest, err := unpackRepeated(int(n), u, rest)
		if err != nil {
			return nil, b, err
		}
		return results, rest, nil
	}
}

func unpackRepeated(n int, u Unpacker, b []byte) ([]interface{}, []byte, error) {
	if n < 0 {
		return nil, b, fmt.Errorf("%w: array of %d elements", ErrSize, n)
	}

	// The count comes off the wire, so don't trust it for the allocation.
	capacity := n
	if limit := len(b)/WordSize + 1; capacity > limit {
		capacity = limit
	}

	results := make([]interface{}, 0, capacity)
	for i := 0; i < n; i++ {
		v, rest, err := u(b)
		if err != nil {
			return nil, b, fmt.Errorf("element %d: %w", i, err)
		}

		results = append(results, v)
		b = rest
	}

	return results, b, nil
}

// Optional decodes a presence flag followed by the payload when the flag is
// set. An absent payload yields nil and consumes only the flag.
func Optional(u Unpacker) Unpacker {
	return func(b []byte) (interface{}, []byte, error) {
		present, rest, err := UnpackBool(b)
		if err != nil {
			return nil, b, err
		}

		if !present {
			return nil, rest, nil
		}

		v, rest, err := u(rest)
		if err != nil {
			return nil, b, err
		}
		return v, rest, nil
	}
}
