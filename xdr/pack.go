package xdr

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
)

// Packer encodes a value whose native type it knows. Packers either return
// the complete encoding or an error, never a partial encoding.
type Packer func(v interface{}) ([]byte, error)

var (
	UintPacker Packer = func(v interface{}) ([]byte, error) {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return PackUint(n)
	}

	IntPacker Packer = func(v interface{}) ([]byte, error) {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return PackInt(n)
	}

	BoolPacker Packer = func(v interface{}) ([]byte, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, typeError("bool", v)
		}
		return PackBool(b), nil
	}

	UhyperPacker Packer = func(v interface{}) ([]byte, error) {
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return PackUhyperBig(n)
	}

	HyperPacker Packer = func(v interface{}) ([]byte, error) {
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return PackHyperBig(n)
	}

	StringPacker Packer = func(v interface{}) ([]byte, error) {
		switch s := v.(type) {
		case string:
			return PackString(s)
		case Symbol:
			return PackString(string(s))
		case []byte:
			return PackVarOpaque(s)
		default:
			return nil, typeError("string", v)
		}
	}

	VarOpaquePacker Packer = func(v interface{}) ([]byte, error) {
		data, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return PackVarOpaque(data)
	}

	// VoidPacker ignores its value and encodes nothing.
	VoidPacker Packer = func(interface{}) ([]byte, error) {
		return []byte{}, nil
	}
)

func OpaquePacker(n int) Packer {
	return func(v interface{}) ([]byte, error) {
		data, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return PackOpaque(n, data)
	}
}

// PackArray encodes exactly n elements with p and no count.
func PackArray(n int, p Packer, vs []interface{}) ([]byte, error) {
	if len(vs) != n {
		return nil, fmt.Errorf("%w: array[%d] given %d elements", ErrSize, n, len(vs))
	}

	return packElements(p, vs)
}

// PackVarArray encodes a leading element count followed by the elements.
func PackVarArray(p Packer, vs []interface{}) ([]byte, error) {
	count, err := packLength(len(vs))
	if err != nil {
		return nil, err
	}

	body, err := packElements(p, vs)
	if err != nil {
		return nil, err
	}

	return append(count, body...), nil
}

func packElements(p Packer, vs []interface{}) ([]byte, error) {
	var buf bytes.Buffer

	for i, v := range vs {
		b, err := p(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		buf.Write(b)
	}

	return buf.Bytes(), nil
}

func ArrayPacker(n int, p Packer) Packer {
	return func(v interface{}) ([]byte, error) {
		vs, ok := v.([]interface{})
		if !ok {
			return nil, typeError("[]interface{}", v)
		}
		return PackArray(n, p, vs)
	}
}

func VarArrayPacker(p Packer) Packer {
	return func(v interface{}) ([]byte, error) {
		vs, ok := v.([]interface{})
		if !ok {
			return nil, typeError("[]interface{}", v)
		}
		return PackVarArray(p, vs)
	}
}

// PackOptional encodes a presence flag and, when v is not nil, v itself.
func PackOptional(p Packer, v interface{}) ([]byte, error) {
	if v == nil {
		return PackBool(false), nil
	}

	b, err := p(v)
	if err != nil {
		return nil, err
	}

	return append(PackBool(true), b...), nil
}

func OptionalPacker(p Packer) Packer {
	return func(v interface{}) ([]byte, error) {
		return PackOptional(p, v)
	}
}

func typeError(want string, v interface{}) error {
	return fmt.Errorf("%w: want %s, got %T", ErrType, want, v)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrRange, n)
		}
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrRange, n)
		}
		return int64(n), nil
	default:
		return 0, typeError("integer", v)
	}
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		i, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return big.NewInt(i), nil
	}
}

func toBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, typeError("[]byte", v)
	}
}
