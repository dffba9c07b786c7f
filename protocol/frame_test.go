package protocol_test

import (
	"bytes"
	"errors"
	"io"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xdrprobe/protocol"
)

var _ = Describe("Frames", func() {
	Describe("EncodeHeader()", func() {
		It("writes the body length then the request id, big-endian", func() {
			h := protocol.EncodeHeader(protocol.Header{BodyLength: 0x0102, RequestID: 7})
			Expect(h).To(Equal([]byte{0, 0, 1, 2, 0, 0, 0, 7}))
		})

		It("round trips through DecodeHeader", func() {
			in := protocol.Header{BodyLength: 4096, RequestID: 0xfffffffe}
			out, err := protocol.DecodeHeader(protocol.EncodeHeader(in))
			Expect(err).To(Succeed())
			Expect(out).To(Equal(in))
		})
	})

	Describe("WriteFrame()", func() {
		It("prefixes the body with a header declaring its exact length", func() {
			w := bytes.NewBuffer([]byte{})
			Expect(protocol.WriteFrame(w, 3, []byte("abcd"))).To(Succeed())
			Expect(w.Bytes()).To(Equal([]byte{0, 0, 0, 4, 0, 0, 0, 3, 'a', 'b', 'c', 'd'}))
		})

		It("writes an empty body as a bare header", func() {
			w := bytes.NewBuffer([]byte{})
			Expect(protocol.WriteFrame(w, 1, nil)).To(Succeed())
			Expect(w.Len()).To(Equal(protocol.HeaderSize))
		})
	})

	Describe("ReadFrame()", func() {
		It("reads back consecutive frames", func() {
			w := bytes.NewBuffer([]byte{})
			Expect(protocol.WriteFrame(w, 0, []byte("first..."))).To(Succeed())
			Expect(protocol.WriteFrame(w, 1, []byte("2nd!"))).To(Succeed())

			h, body, err := protocol.ReadFrame(w, protocol.DefaultMaxBodySize)
			Expect(err).To(Succeed())
			Expect(h.RequestID).To(Equal(protocol.RequestID(0)))
			Expect(string(body)).To(Equal("first..."))

			h, body, err = protocol.ReadFrame(w, protocol.DefaultMaxBodySize)
			Expect(err).To(Succeed())
			Expect(h.RequestID).To(Equal(protocol.RequestID(1)))
			Expect(string(body)).To(Equal("2nd!"))
		})

		It("returns io.EOF on a cleanly closed stream", func() {
			_, _, err := protocol.ReadFrame(bytes.NewReader(nil), 0)
			Expect(err).To(MatchError(io.EOF))
		})

		It("returns ErrShortFrame on a truncated header", func() {
			_, _, err := protocol.ReadFrame(bytes.NewReader([]byte{0, 0, 0}), 0)
			Expect(errors.Is(err, protocol.ErrShortFrame)).To(BeTrue())
		})

		It("returns ErrShortFrame when the body is shorter than declared", func() {
			data := []byte{0, 0, 0, 8, 0, 0, 0, 1, 'a', 'b'}
			h, _, err := protocol.ReadFrame(bytes.NewReader(data), 0)
			Expect(errors.Is(err, protocol.ErrShortFrame)).To(BeTrue())
			Expect(h.BodyLength).To(Equal(uint32(8)))
		})

		It("refuses bodies above the limit before reading them", func() {
			data := []byte{0, 1, 0, 0, 0, 0, 0, 1}
			_, _, err := protocol.ReadFrame(bytes.NewReader(data), 1024)
			Expect(errors.Is(err, protocol.ErrFrameTooLarge)).To(BeTrue())
		})
	})
})
