package transport

import (
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. Zero picks a free port, see TCP.Addr
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// Handler answers each request frame
	Handler Handler

	// Async hands each request to the handler on its own goroutine, so
	// responses go out in the order the handler finishes them rather than
	// the order the requests arrived.
	Async bool

	// MaxFrameSize bounds the body of a single request
	MaxFrameSize uint32

	Log *zap.Logger
}
