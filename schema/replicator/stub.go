package replicator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/xdrprobe/protocol"
	"github.com/luma/xdrprobe/record"
	"github.com/luma/xdrprobe/storage"
)

// ServerVersion is the protocol version the reference server speaks.
var ServerVersion = Version{Major: 1, Minor: 1, Patch: 1}

// Stub answers commands the way a replicator speaking Version would. It
// has no state beyond the journal of what it was sent.
type Stub struct {
	Version Version
	Journal *storage.Journal
	Log     *zap.Logger
}

func NewStub(version Version, journal *storage.Journal, log *zap.Logger) *Stub {
	if log == nil {
		log = zap.NewNop()
	}

	return &Stub{
		Version: version,
		Journal: journal,
		Log:     log.Named("stub"),
	}
}

// Handle decodes one command body and returns the encoded response.
func (s *Stub) Handle(ctx context.Context, id protocol.RequestID, body []byte) ([]byte, error) {
	v, rest, err := CommandUnpacker(body)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode command %d: %w", id, err)
	}

	if len(rest) > 0 {
		s.Log.Warn("Command has trailing bytes",
			zap.Uint32("requestID", uint32(id)),
			zap.Int("trailing", len(rest)))
	}

	cmd := v.(*record.Record)

	if s.Journal != nil {
		if err := s.Journal.Append(ctx, uint32(id), cmd); err != nil {
			s.Log.Warn("Failed to journal command", zap.Error(err))
		}
	}

	switch cmd.Get(Discriminator) {
	case Logon:
		client, err := ParseLogon(cmd)
		if err != nil {
			return nil, err
		}

		ok := s.Version.Supports(client)
		s.Log.Info("LOGON",
			zap.Uint32("requestID", uint32(id)),
			zap.Stringer("client", client),
			zap.Stringer("server", s.Version),
			zap.Bool("accepted", ok))

		return ResponsePacker(MakeResponse(ok))

	default:
		return nil, fmt.Errorf("%w: unhandled command %v", ErrMalformed, cmd.Get(Discriminator))
	}
}
