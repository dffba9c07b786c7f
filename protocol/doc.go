package protocol

// This package implements the framing of the binary protocol spoken between
// xdrprobe and the replicator under test.
//
// Every message, in either direction, is a frame
//
//   ```
//   +----------------+----------------+=====================+
//   | body length    | request id     | body                |
//   | uint32, BE     | uint32, BE     | body length bytes   |
//   +----------------+----------------+=====================+
//   ```
//
// There is no magic number, checksum or version field. Versioning, if any,
// lives inside the body, which is encoded with the xdr package according to
// the service schema (see schema/replicator).
//
// The client picks request ids, starting at 0 and increasing by one for each
// request. The server echoes the id of the request in the frame carrying its
// response so the client can associate the reply with the right request.
// Responses can arrive in any order, but a single frame is always written
// atomically: you will never receive half of a frame, then another frame,
// then the rest of the first one.
