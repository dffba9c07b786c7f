package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the length of the fixed frame header.
	HeaderSize = 8

	// DefaultMaxBodySize bounds the body a reader will allocate for.
	DefaultMaxBodySize = 16 * 1024 * 1024
)

var (
	ErrShortFrame    = errors.New("Frame is malformed, the stream ended before the declared length")
	ErrFrameTooLarge = errors.New("Frame body is larger than the allowed maximum")
)

type RequestID uint32

// Header precedes every frame body on the wire.
type Header struct {
	BodyLength uint32
	RequestID  RequestID
}

func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], h.BodyLength)
	binary.BigEndian.PutUint32(b[4:8], uint32(h.RequestID))
	return b
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("Header needs %d bytes, have %d: %w", HeaderSize, len(b), ErrShortFrame)
	}

	return Header{
		BodyLength: binary.BigEndian.Uint32(b[0:4]),
		RequestID:  RequestID(binary.BigEndian.Uint32(b[4:8])),
	}, nil
}

// AppendFrame returns the header for body followed by body, ready to be
// written in one call.
func AppendFrame(id RequestID, body []byte) ([]byte, error) {
	if uint64(len(body)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("Body of %d bytes: %w", len(body), ErrFrameTooLarge)
	}

	h := EncodeHeader(Header{BodyLength: uint32(len(body)), RequestID: id})
	return append(h, body...), nil
}

// WriteFrame writes header and body with a single Write so that frames from
// writers sharing w under a lock never interleave.
func WriteFrame(w io.Writer, id RequestID, body []byte) error {
	frame, err := AppendFrame(id, body)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads exactly one header and exactly the body it declares.
//
// A stream that ends cleanly before any header byte returns io.EOF. A stream
// that ends partway through a frame returns ErrShortFrame.
func ReadFrame(r io.Reader, maxBody uint32) (Header, []byte, error) {
	var hb [HeaderSize]byte

	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, nil, fmt.Errorf("Reading header: %w", ErrShortFrame)
		}
		return Header{}, nil, err
	}

	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Header{}, nil, err
	}

	if maxBody > 0 && h.BodyLength > maxBody {
		return h, nil, fmt.Errorf("Request %d declares %d bytes: %w", h.RequestID, h.BodyLength, ErrFrameTooLarge)
	}

	body := make([]byte, h.BodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, nil, fmt.Errorf("Request %d body: %w", h.RequestID, ErrShortFrame)
		}
		return h, nil, err
	}

	return h, body, nil
}
