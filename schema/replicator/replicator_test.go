package replicator_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/xdrprobe/protocol"
	"github.com/luma/xdrprobe/record"
	"github.com/luma/xdrprobe/schema/replicator"
	"github.com/luma/xdrprobe/storage"
	"github.com/luma/xdrprobe/xdr"
)

var _ = Describe("replicator", func() {
	Describe("LOGON", func() {
		It("encodes as the command constant followed by the version", func() {
			b, err := replicator.CommandPacker(replicator.MakeLogon(replicator.Version{Major: 1, Minor: 2, Patch: 3}))
			Expect(err).To(Succeed())
			Expect(b).To(Equal([]byte{
				0, 0, 0, 0,
				0, 0, 0, 1,
				0, 0, 0, 2,
				0, 0, 0, 3,
			}))
		})

		It("round trips", func() {
			in := replicator.Version{Major: 0, Minor: 9, Patch: 42}

			b, err := replicator.CommandPacker(replicator.MakeLogon(in))
			Expect(err).To(Succeed())

			v, rest, err := replicator.CommandUnpacker(b)
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())

			out, err := replicator.ParseLogon(v.(*record.Record))
			Expect(err).To(Succeed())
			Expect(out).To(Equal(in))
		})

		It("rejects a command that is not a LOGON", func() {
			_, err := replicator.ParseLogon(record.New().Set(replicator.Discriminator, xdr.Symbol("NOPE")))
			Expect(errors.Is(err, replicator.ErrMalformed)).To(BeTrue())
		})
	})

	Describe("responses", func() {
		It("decode to SUCCESS and FAIL", func() {
			v, _, err := replicator.ResponseUnpacker([]byte{0, 0, 0, 0})
			Expect(err).To(Succeed())
			Expect(replicator.ParseResponse(v)).To(Equal(replicator.Response{OK: true}))

			v, _, err = replicator.ResponseUnpacker([]byte{0, 0, 0, 1})
			Expect(err).To(Succeed())
			Expect(replicator.ParseResponse(v)).To(Equal(replicator.Response{OK: false}))
		})

		It("reject unknown response types", func() {
			_, _, err := replicator.ResponseUnpacker([]byte{0, 0, 0, 2})
			Expect(errors.Is(err, xdr.ErrInvalidEnumValue)).To(BeTrue())
		})
	})

	Describe("DeviceBinding", func() {
		It("round trips", func() {
			in := replicator.DeviceBinding{Shortname: 1, LogicalName: "device 1", Path: "/dev/disc/foo"}

			b, err := replicator.DeviceBindingPacker(in.Record())
			Expect(err).To(Succeed())

			v, rest, err := replicator.DeviceBindingUnpacker(b)
			Expect(err).To(Succeed())
			Expect(rest).To(BeEmpty())

			out, err := replicator.ParseDeviceBinding(v.(*record.Record))
			Expect(err).To(Succeed())
			Expect(out).To(Equal(in))
		})
	})

	table.DescribeTable("Version.Supports() against a 1.1.1 server",
		func(client replicator.Version, accepted bool) {
			Expect(replicator.ServerVersion.Supports(client)).To(Equal(accepted))
		},
		table.Entry("an older major", replicator.Version{Major: 0, Minor: 99, Patch: 99}, true),
		table.Entry("an older minor", replicator.Version{Major: 1, Minor: 0, Patch: 7}, true),
		table.Entry("the same version", replicator.Version{Major: 1, Minor: 1, Patch: 1}, true),
		table.Entry("a newer patch", replicator.Version{Major: 1, Minor: 1, Patch: 100}, true),
		table.Entry("a newer minor", replicator.Version{Major: 1, Minor: 2, Patch: 0}, false),
		table.Entry("a newer major", replicator.Version{Major: 2, Minor: 0, Patch: 0}, false),
	)

	Describe("Stub", func() {
		var (
			journal *storage.Journal
			stub    *replicator.Stub
		)

		BeforeEach(func() {
			journal = storage.NewJournal(storage.NewInmemoryStore())
			stub = replicator.NewStub(replicator.ServerVersion, journal, nil)
		})

		logon := func(id uint32, v replicator.Version) replicator.Response {
			body, err := replicator.CommandPacker(replicator.MakeLogon(v))
			Expect(err).To(Succeed())

			out, err := stub.Handle(context.Background(), protocol.RequestID(id), body)
			Expect(err).To(Succeed())

			resp, _, err := replicator.ResponseUnpacker(out)
			Expect(err).To(Succeed())

			parsed, err := replicator.ParseResponse(resp)
			Expect(err).To(Succeed())
			return parsed
		}

		It("accepts compatible clients", func() {
			Expect(logon(0, replicator.Version{Major: 1, Minor: 0, Patch: 0}).OK).To(BeTrue())
		})

		It("refuses newer clients", func() {
			Expect(logon(0, replicator.Version{Major: 1, Minor: 2, Patch: 0}).OK).To(BeFalse())
		})

		It("journals every command", func() {
			logon(4, replicator.Version{Major: 1, Minor: 0, Patch: 9})

			entry, err := journal.Entry(context.Background(), 4)
			Expect(err).To(Succeed())
			Expect(entry.Get("discriminator").String()).To(Equal("LOGON"))
			Expect(entry.Get("logon.patch").Uint()).To(Equal(uint64(9)))
		})

		It("fails on bodies that do not decode", func() {
			_, err := stub.Handle(context.Background(), 0, []byte{0, 0, 0, 9})
			Expect(errors.Is(err, xdr.ErrInvalidEnumValue)).To(BeTrue())
		})
	})
})
