package xdr_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xdrprobe/record"
	"github.com/luma/xdrprobe/xdr"
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mustUint(n int64) []byte {
	b, err := xdr.PackUint(n)
	Expect(err).To(Succeed())
	return b
}

func mustInt(n int64) []byte {
	b, err := xdr.PackInt(n)
	Expect(err).To(Succeed())
	return b
}

func mustString(s string) []byte {
	b, err := xdr.PackString(s)
	Expect(err).To(Succeed())
	return b
}

var _ = Describe("Combinators", func() {
	Describe("Many()", func() {
		It("applies each unpacker in turn", func() {
			u := xdr.Many(xdr.Uint(), xdr.String(), xdr.Bool())
			v, rest, err := u(concat(mustUint(3), mustString("hi"), xdr.PackBool(true), []byte{9}))
			Expect(err).To(Succeed())
			Expect(v).To(Equal([]interface{}{uint32(3), "hi", true}))
			Expect(rest).To(Equal([]byte{9}))
		})

		It("returns what it decoded before a failure", func() {
			u := xdr.Many(xdr.Uint(), xdr.Uint())
			v, _, err := u(concat(mustUint(3), []byte{0, 0}))
			Expect(errors.Is(err, xdr.ErrShortBuffer)).To(BeTrue())
			Expect(v).To(Equal([]interface{}{uint32(3)}))
		})
	})

	Describe("Array()", func() {
		It("round trips through PackArray", func() {
			a := []interface{}{uint32(1), uint32(32), uint32(63), uint32(99), uint32(1000)}
			b, err := xdr.PackArray(5, xdr.UintPacker, a)
			Expect(err).To(Succeed())
			Expect(b).To(HaveLen(20))

			v, rest, err := xdr.Array(5, xdr.Uint())(b)
			Expect(err).To(Succeed())
			Expect(v).To(Equal(a))
			Expect(rest).To(BeEmpty())
		})

		It("refuses to pack the wrong number of elements", func() {
			_, err := xdr.PackArray(6, xdr.UintPacker, []interface{}{1, 2, 3, 4, 5})
			Expect(errors.Is(err, xdr.ErrSize)).To(BeTrue())
		})

		It("always decodes the declared number of elements", func() {
			v, rest, err := xdr.Array(2, xdr.Uint())(concat(mustUint(1), mustUint(2), mustUint(3)))
			Expect(err).To(Succeed())
			Expect(v).To(HaveLen(2))
			Expect(rest).To(Equal(mustUint(3)))
		})
	})

	Describe("VarArray()", func() {
		It("round trips through PackVarArray", func() {
			a := []interface{}{"a", "bcd", ""}
			b, err := xdr.PackVarArray(xdr.StringPacker, a)
			Expect(err).To(Succeed())
			Expect(b[:4]).To(Equal(mustUint(3)))

			v, rest, err := xdr.VarArray(xdr.String())(b)
			Expect(err).To(Succeed())
			Expect(v).To(Equal(a))
			Expect(rest).To(BeEmpty())
		})

		It("fails cleanly on an absurd count", func() {
			_, _, err := xdr.VarArray(xdr.Uint())(concat(mustUint(0xffffffff), mustUint(1)))
			Expect(errors.Is(err, xdr.ErrShortBuffer)).To(BeTrue())
		})
	})

	Describe("Opaque()", func() {
		It("takes the content and drops the padding", func() {
			v, rest, err := xdr.Opaque(3)([]byte{'a', 'b', 'c', 0, 7})
			Expect(err).To(Succeed())
			Expect(v).To(Equal([]byte("abc")))
			Expect(rest).To(Equal([]byte{7}))
		})
	})

	Describe("VarOpaque()", func() {
		It("reads the length prefix", func() {
			b, err := xdr.VarOpaquePacker([]byte("hello"))
			Expect(err).To(Succeed())

			v, rest, err := xdr.VarOpaque()(b)
			Expect(err).To(Succeed())
			Expect(v).To(Equal([]byte("hello")))
			Expect(rest).To(BeEmpty())
		})
	})

	Describe("Optional()", func() {
		u := xdr.Optional(xdr.Uint())

		It("yields nil and consumes only the flag when absent", func() {
			v, rest, err := u(concat(xdr.PackBool(false), mustUint(56)))
			Expect(err).To(Succeed())
			Expect(v).To(BeNil())
			Expect(rest).To(Equal(mustUint(56)))
		})

		It("yields the payload when present", func() {
			v, rest, err := u(concat(xdr.PackBool(true), mustUint(56)))
			Expect(err).To(Succeed())
			Expect(v).To(Equal(uint32(56)))
			Expect(rest).To(BeEmpty())
		})

		It("round trips through PackOptional", func() {
			b, err := xdr.PackOptional(xdr.UintPacker, nil)
			Expect(err).To(Succeed())
			Expect(b).To(Equal(xdr.PackBool(false)))

			b, err = xdr.OptionalPacker(xdr.UintPacker)(uint32(56))
			Expect(err).To(Succeed())
			Expect(b).To(Equal(concat(xdr.PackBool(true), mustUint(56))))
		})
	})

	Describe("Void()", func() {
		It("consumes nothing", func() {
			v, rest, err := xdr.Void()([]byte{1, 2, 3, 4})
			Expect(err).To(Succeed())
			Expect(v).To(BeNil())
			Expect(rest).To(Equal([]byte{1, 2, 3, 4}))
		})
	})

	Describe("Enum", func() {
		var e *xdr.Enum

		BeforeEach(func() {
			var err error
			e, err = xdr.NewEnum("test", map[xdr.Symbol]uint32{"one": 1, "two": 2, "three": 45})
			Expect(err).To(Succeed())
		})

		It("round trips every symbol", func() {
			for _, sym := range []xdr.Symbol{"one", "two", "three"} {
				b, err := e.Pack(sym)
				Expect(err).To(Succeed())

				v, rest, err := e.Unpacker()(b)
				Expect(err).To(Succeed())
				Expect(v).To(Equal(sym))
				Expect(rest).To(BeEmpty())
			}
		})

		It("packs the wire constant", func() {
			Expect(e.Pack("three")).To(Equal(mustUint(45)))
		})

		It("rejects unknown symbols", func() {
			for _, v := range []interface{}{xdr.Symbol("foo"), "blip", "onetwo", 3} {
				_, err := e.Pack(v)
				Expect(errors.Is(err, xdr.ErrInvalidEnumValue)).To(BeTrue())
			}
		})

		It("rejects unknown constants", func() {
			_, _, err := e.Unpacker()(mustUint(3))
			Expect(errors.Is(err, xdr.ErrInvalidEnumValue)).To(BeTrue())
		})

		It("refuses two symbols with the same constant", func() {
			_, err := xdr.NewEnum("bad", map[xdr.Symbol]uint32{"a": 1, "b": 1})
			Expect(errors.Is(err, xdr.ErrInvalidEnumValue)).To(BeTrue())
		})

		It("lists symbols in constant order", func() {
			Expect(e.Symbols()).To(Equal([]xdr.Symbol{"one", "two", "three"}))
		})
	})

	Describe("Struct()", func() {
		binding := xdr.Struct(
			xdr.Field{Name: "shortname", Unpacker: xdr.Uint()},
			xdr.Field{Name: "logical_name", Unpacker: xdr.String()},
			xdr.Field{Name: "path", Unpacker: xdr.String()},
		)

		packBinding := xdr.PackStruct(
			xdr.PackField{Name: "shortname", Packer: xdr.UintPacker},
			xdr.PackField{Name: "logical_name", Packer: xdr.StringPacker},
			xdr.PackField{Name: "path", Packer: xdr.StringPacker},
		)

		It("round trips a record", func() {
			in := record.New().
				Set("shortname", uint32(1)).
				Set("logical_name", "device 1").
				Set("path", "/dev/disc/foo")

			b, err := packBinding(in)
			Expect(err).To(Succeed())

			v, rest, err := binding(b)
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())
			Expect(v.(*record.Record).Equal(in)).To(BeTrue())
		})

		It("leaves the fields decoded before a failure in the record", func() {
			v, _, err := binding(concat(mustUint(1), mustString("device 1"), []byte{0, 0}))
			Expect(errors.Is(err, xdr.ErrShortBuffer)).To(BeTrue())

			r := v.(*record.Record)
			Expect(r.Get("shortname")).To(Equal(uint32(1)))
			Expect(r.Get("logical_name")).To(Equal("device 1"))
			Expect(r.Has("path")).To(BeFalse())
		})

		It("writes nothing when a field fails to pack", func() {
			b, err := packBinding(record.New().Set("shortname", -1))
			Expect(errors.Is(err, xdr.ErrRange)).To(BeTrue())
			Expect(b).To(BeNil())
		})
	})

	Describe("Union()", func() {
		var u xdr.Unpacker

		BeforeEach(func() {
			var err error
			u, err = xdr.Union(
				xdr.Field{Name: "discriminator", Unpacker: xdr.Uint()},
				[]xdr.Case{
					{Value: 1, Name: "f1", Unpacker: xdr.Int()},
					{Value: 2, Name: "f2", Unpacker: xdr.String()},
				},
				&xdr.Field{Name: "f3", Unpacker: xdr.Array(2, xdr.Uint())},
			)
			Expect(err).To(Succeed())
		})

		It("decodes the first arm", func() {
			v, rest, err := u(concat(mustUint(1), mustInt(7)))
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())

			r := v.(*record.Record)
			Expect(r.Get("discriminator")).To(Equal(uint32(1)))
			Expect(r.Get("f1")).To(Equal(int32(7)))
		})

		It("decodes the second arm", func() {
			v, rest, err := u(concat(mustUint(2), mustString("hello, world!")))
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())

			r := v.(*record.Record)
			Expect(r.Get("discriminator")).To(Equal(uint32(2)))
			Expect(r.Get("f2")).To(Equal("hello, world!"))
		})

		It("falls back to the default arm", func() {
			v, rest, err := u(concat(mustUint(97), mustUint(5), mustUint(78)))
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())

			r := v.(*record.Record)
			Expect(r.Get("discriminator")).To(Equal(uint32(97)))
			Expect(r.Get("f3")).To(Equal([]interface{}{uint32(5), uint32(78)}))
		})

		It("fails on an unknown discriminant without a default", func() {
			noDefault := xdr.MustUnion(
				xdr.Field{Name: "discriminator", Unpacker: xdr.Uint()},
				[]xdr.Case{{Value: 1, Name: "f1", Unpacker: xdr.Int()}},
				nil,
			)

			_, _, err := noDefault(concat(mustUint(97), mustUint(5)))
			Expect(errors.Is(err, xdr.ErrUnknownDiscriminant)).To(BeTrue())
		})

		It("refuses overlapping cases", func() {
			_, err := xdr.Union(
				xdr.Field{Name: "discriminator", Unpacker: xdr.Uint()},
				[]xdr.Case{
					{Value: 1, Name: "f1", Unpacker: xdr.Int()},
					{Value: uint32(1), Name: "f2", Unpacker: xdr.String()},
				},
				nil,
			)
			Expect(errors.Is(err, xdr.ErrDuplicateCase)).To(BeTrue())
		})

		It("dispatches on enum symbols", func() {
			kind := xdr.MustEnum("kind", map[xdr.Symbol]uint32{"SUCCESS": 0, "FAIL": 1})
			resp := xdr.MustUnion(
				xdr.Field{Name: "discriminator", Unpacker: kind.Unpacker()},
				[]xdr.Case{
					{Value: xdr.Symbol("SUCCESS"), Name: "success", Unpacker: xdr.Void()},
					{Value: xdr.Symbol("FAIL"), Name: "reason", Unpacker: xdr.String()},
				},
				nil,
			)

			v, _, err := resp(concat(mustUint(1), mustString("nope")))
			Expect(err).To(Succeed())
			Expect(v.(*record.Record).Get("discriminator")).To(Equal(xdr.Symbol("FAIL")))
			Expect(v.(*record.Record).Get("reason")).To(Equal("nope"))
		})

		It("round trips through PackUnion", func() {
			p, err := xdr.PackUnion(
				xdr.PackField{Name: "discriminator", Packer: xdr.UintPacker},
				[]xdr.PackCase{
					{Value: 1, Name: "f1", Packer: xdr.IntPacker},
					{Value: 2, Name: "f2", Packer: xdr.StringPacker},
				},
				&xdr.PackField{Name: "f3", Packer: xdr.ArrayPacker(2, xdr.UintPacker)},
			)
			Expect(err).To(Succeed())

			for _, in := range []*record.Record{
				record.New().Set("discriminator", uint32(1)).Set("f1", int32(-7)),
				record.New().Set("discriminator", uint32(2)).Set("f2", "hello, world!"),
				record.New().Set("discriminator", uint32(97)).Set("f3", []interface{}{uint32(5), uint32(78)}),
			} {
				b, err := p(in)
				Expect(err).To(Succeed())

				v, rest, err := u(b)
				Expect(err).To(Succeed())
				Expect(rest).To(BeEmpty())
				Expect(v.(*record.Record).Equal(in)).To(BeTrue())
			}
		})
	})
})
