package xdr

import "errors"

var (
	ErrRange               = errors.New("xdr: value outside the domain of its type")
	ErrSize                = errors.New("xdr: length does not match the declared size")
	ErrInvalidEnumValue    = errors.New("xdr: invalid enum value")
	ErrUnknownDiscriminant = errors.New("xdr: no union arm matches the discriminant")
	ErrDuplicateCase       = errors.New("xdr: union case constants are not distinct")
	ErrNotImplemented      = errors.New("xdr: not implemented")
	ErrShortBuffer         = errors.New("xdr: not enough data to decode")
	ErrType                = errors.New("xdr: value has the wrong native type")
)
