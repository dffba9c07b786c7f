package xdr

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

const (
	// WordSize is the unit every encoding is padded to.
	WordSize = 4

	intBias   = 1 << 31
	hyperBias = 1 << 63
)

var (
	maxUhyper = new(big.Int).SetUint64(math.MaxUint64)
	minHyper  = big.NewInt(math.MinInt64)
	maxHyper  = big.NewInt(math.MaxInt64)
)

// Padding returns the number of zero bytes that follow n bytes of content.
func Padding(n int) int {
	return (WordSize - n%WordSize) % WordSize
}

func packWord(w uint32) []byte {
	b := make([]byte, WordSize)
	binary.BigEndian.PutUint32(b, w)
	return b
}

// PackUint encodes n as 4 big-endian bytes. n must lie in 0..2^32-1.
func PackUint(n int64) ([]byte, error) {
	if n < 0 || n > math.MaxUint32 {
		return nil, fmt.Errorf("%w: uint %d", ErrRange, n)
	}

	return packWord(uint32(n)), nil
}

func UnpackUint(b []byte) (uint32, []byte, error) {
	if len(b) < WordSize {
		return 0, b, fmt.Errorf("%w: uint needs %d bytes, have %d", ErrShortBuffer, WordSize, len(b))
	}

	return binary.BigEndian.Uint32(b), b[WordSize:], nil
}

// PackInt encodes n biased by 2^31 in the unsigned form. n must lie in
// -2^31..2^31-1.
func PackInt(n int64) ([]byte, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: int %d", ErrRange, n)
	}

	return PackUint(n + intBias)
}

func UnpackInt(b []byte) (int32, []byte, error) {
	u, rest, err := UnpackUint(b)
	if err != nil {
		return 0, b, err
	}

	return int32(int64(u) - intBias), rest, nil
}

func PackBool(v bool) []byte {
	if v {
		return packWord(1)
	}

	return packWord(0)
}

// UnpackBool treats exactly 1 as true. Every other word, including non-zero
// garbage, decodes as false.
func UnpackBool(b []byte) (bool, []byte, error) {
	u, rest, err := UnpackUint(b)
	if err != nil {
		return false, b, err
	}

	return u == 1, rest, nil
}

// PackUhyper encodes n as two big-endian words, high word first.
func PackUhyper(n uint64) []byte {
	b := make([]byte, 2*WordSize)
	binary.BigEndian.PutUint32(b[:WordSize], uint32(n>>32))
	binary.BigEndian.PutUint32(b[WordSize:], uint32(n))
	return b
}

// PackUhyperBig is PackUhyper for callers holding arbitrary precision
// integers; n must lie in 0..2^64-1.
func PackUhyperBig(n *big.Int) ([]byte, error) {
	if n.Sign() < 0 || n.Cmp(maxUhyper) > 0 {
		return nil, fmt.Errorf("%w: uhyper %s", ErrRange, n)
	}

	return PackUhyper(n.Uint64()), nil
}

func UnpackUhyper(b []byte) (uint64, []byte, error) {
	if len(b) < 2*WordSize {
		return 0, b, fmt.Errorf("%w: uhyper needs %d bytes, have %d", ErrShortBuffer, 2*WordSize, len(b))
	}

	h := uint64(binary.BigEndian.Uint32(b[:WordSize]))
	l := uint64(binary.BigEndian.Uint32(b[WordSize:]))

	return h<<32 | l, b[2*WordSize:], nil
}

// PackHyper encodes n biased by 2^63 in the unsigned form.
func PackHyper(n int64) []byte {
	return PackUhyper(uint64(n) + hyperBias)
}

// PackHyperBig is PackHyper for arbitrary precision integers; n must lie in
// -2^63..2^63-1.
func PackHyperBig(n *big.Int) ([]byte, error) {
	if n.Cmp(minHyper) < 0 || n.Cmp(maxHyper) > 0 {
		return nil, fmt.Errorf("%w: hyper %s", ErrRange, n)
	}

	return PackHyper(n.Int64()), nil
}

func UnpackHyper(b []byte) (int64, []byte, error) {
	u, rest, err := UnpackUhyper(b)
	if err != nil {
		return 0, b, err
	}

	return int64(u - hyperBias), rest, nil
}

func PackFloat(f float32) ([]byte, error) {
	return nil, fmt.Errorf("%w: float", ErrNotImplemented)
}

func UnpackFloat(b []byte) (float32, []byte, error) {
	return 0, b, fmt.Errorf("%w: float", ErrNotImplemented)
}

func PackDouble(d float64) ([]byte, error) {
	return nil, fmt.Errorf("%w: double", ErrNotImplemented)
}

func UnpackDouble(b []byte) (float64, []byte, error) {
	return 0, b, fmt.Errorf("%w: double", ErrNotImplemented)
}

// PackRaw returns data followed by the zero padding that brings it to a
// multiple of WordSize.
func PackRaw(data []byte) []byte {
	out := make([]byte, len(data)+Padding(len(data)))
	copy(out, data)
	return out
}

// UnpackRaw takes n content bytes and skips their padding. The padding bytes
// are not inspected.
func UnpackRaw(n int, b []byte) ([]byte, []byte, error) {
	total := n + Padding(n)
	if n < 0 || len(b) < total {
		return nil, b, fmt.Errorf("%w: opaque of %d bytes needs %d, have %d", ErrShortBuffer, n, total, len(b))
	}

	data := make([]byte, n)
	copy(data, b[:n])

	return data, b[total:], nil
}

// PackOpaque encodes fixed length opaque data; len(data) must equal n.
func PackOpaque(n int, data []byte) ([]byte, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%w: opaque[%d] given %d bytes", ErrSize, n, len(data))
	}

	return PackRaw(data), nil
}

func UnpackOpaque(n int, b []byte) ([]byte, []byte, error) {
	return UnpackRaw(n, b)
}

func packLength(n int) ([]byte, error) {
	return PackUint(int64(n))
}

func PackVarOpaque(data []byte) ([]byte, error) {
	length, err := packLength(len(data))
	if err != nil {
		return nil, err
	}

	return append(length, PackRaw(data)...), nil
}

func UnpackVarOpaque(b []byte) ([]byte, []byte, error) {
	n, rest, err := UnpackUint(b)
	if err != nil {
		return nil, b, err
	}

	data, rest, err := UnpackRaw(int(n), rest)
	if err != nil {
		return nil, b, err
	}

	return data, rest, nil
}

func PackString(s string) ([]byte, error) {
	return PackVarOpaque([]byte(s))
}

func UnpackString(b []byte) (string, []byte, error) {
	data, rest, err := UnpackVarOpaque(b)
	if err != nil {
		return "", b, err
	}

	return string(data), rest, nil
}
