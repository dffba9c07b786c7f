// Package replicator describes the wire schema of the replicator service:
// the commands a client may send, the responses it gets back and the
// records they carry.
package replicator

import (
	"github.com/luma/xdrprobe/client"
	"github.com/luma/xdrprobe/xdr"
)

// Discriminator is the record field every union in this schema stores its
// discriminant under.
const Discriminator = "discriminator"

const (
	Logon xdr.Symbol = "LOGON"

	Success xdr.Symbol = "SUCCESS"
	Fail    xdr.Symbol = "FAIL"
)

var (
	CommandType  = xdr.MustEnum("command_type", map[xdr.Symbol]uint32{Logon: 0})
	ResponseType = xdr.MustEnum("response_type", map[xdr.Symbol]uint32{Success: 0, Fail: 1})
)

var (
	logonUnpacker = xdr.Struct(
		xdr.Field{Name: "major", Unpacker: xdr.Uint()},
		xdr.Field{Name: "minor", Unpacker: xdr.Uint()},
		xdr.Field{Name: "patch", Unpacker: xdr.Uint()},
	)

	logonPacker = xdr.PackStruct(
		xdr.PackField{Name: "major", Packer: xdr.UintPacker},
		xdr.PackField{Name: "minor", Packer: xdr.UintPacker},
		xdr.PackField{Name: "patch", Packer: xdr.UintPacker},
	)

	DeviceBindingUnpacker = xdr.Struct(
		xdr.Field{Name: "shortname", Unpacker: xdr.Uint()},
		xdr.Field{Name: "logical_name", Unpacker: xdr.String()},
		xdr.Field{Name: "path", Unpacker: xdr.String()},
	)

	DeviceBindingPacker = xdr.PackStruct(
		xdr.PackField{Name: "shortname", Packer: xdr.UintPacker},
		xdr.PackField{Name: "logical_name", Packer: xdr.StringPacker},
		xdr.PackField{Name: "path", Packer: xdr.StringPacker},
	)

	CommandUnpacker = xdr.MustUnion(
		xdr.Field{Name: Discriminator, Unpacker: CommandType.Unpacker()},
		[]xdr.Case{
			{Value: Logon, Name: "logon", Unpacker: logonUnpacker},
		},
		nil,
	)

	CommandPacker = xdr.MustPackUnion(
		xdr.PackField{Name: Discriminator, Packer: CommandType.Packer()},
		[]xdr.PackCase{
			{Value: Logon, Name: "logon", Packer: logonPacker},
		},
		nil,
	)

	ResponseUnpacker = xdr.MustUnion(
		xdr.Field{Name: Discriminator, Unpacker: ResponseType.Unpacker()},
		[]xdr.Case{
			{Value: Success, Name: "success", Unpacker: xdr.Void()},
			{Value: Fail, Name: "fail", Unpacker: xdr.Void()},
		},
		nil,
	)

	ResponsePacker = xdr.MustPackUnion(
		xdr.PackField{Name: Discriminator, Packer: ResponseType.Packer()},
		[]xdr.PackCase{
			{Value: Success, Name: "success", Packer: xdr.VoidPacker},
			{Value: Fail, Name: "fail", Packer: xdr.VoidPacker},
		},
		nil,
	)
)

// ClientCodec is the codec a client of the replicator speaks: it sends
// commands and receives responses.
func ClientCodec() client.Codec {
	return client.Codec{
		Encode: CommandPacker,
		Decode: ResponseUnpacker,
	}
}
