package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/xdrprobe/protocol"
)

const (
	WriteQueueSize = 127
)

// Handler answers one request. Returning a nil body sends no response.
type Handler func(ctx context.Context, id protocol.RequestID, body []byte) ([]byte, error)

// TCP is a framed request/response server. Every connection gets a read
// loop that hands requests to the Handler and a write loop that sends the
// responses back.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool
	handler   Handler
	async     bool
	maxFrame  uint32

	listener net.Listener

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
	closed      bool

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	maxFrame := options.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = protocol.DefaultMaxBodySize
	}

	return &TCP{
		addr:        net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:   options.Reuseport,
		handler:     options.Handler,
		async:       options.Async,
		maxFrame:    maxFrame,
		activeConns: make(map[*TCPConn]struct{}),
		log:         log,
	}
}

// Start binds the listener and begins accepting connections. The server is
// accepting by the time Start returns.
func (t *TCP) Start(parentCtx context.Context) error {
	if t.handler == nil {
		return errors.New("A handler is required")
	}

	var (
		listener net.Listener
		err      error
	)

	if t.reuseport {
		listener, err = reuseport.Listen("tcp", t.addr)
	} else {
		listener, err = net.Listen("tcp", t.addr)
	}

	if err != nil {
		return fmt.Errorf("Failed to listen on %s: %w", t.addr, err)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel
	t.listener = listener

	t.log.Info("Listening", zap.String("addr", listener.Addr().String()))

	t.stopWaiter.Add(1)
	go func() {
		defer t.stopWaiter.Done()

		if err := t.accept(ctx); err != nil {
			t.log.Error("Stopped accepting connections", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	return nil
}

// Addr returns the address the server is listening on. It is only valid
// after Start.
func (t *TCP) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting connections, closes the active ones and waits for
// their loops to exit.
func (t *TCP) Close() (err error) {
	if t.listener == nil {
		return nil
	}

	t.log.Info("Stopping TCP server")
	t.cancel()

	if cerr := t.listener.Close(); cerr != nil && !isClosedErr(cerr) {
		err = multierr.Append(err, cerr)
	}

	t.mu.Lock()
	t.closed = true
	conns := make([]*TCPConn, 0, len(t.activeConns))
	for conn := range t.activeConns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	t.stopWaiter.Wait()
	t.log.Info("TCP server stopped")

	return err
}

func (t *TCP) accept(ctx context.Context) error {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if isClosedErr(err) || ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(ctx, conn, t.handler, t.async, t.maxFrame,
			t.log.Named("conn").With(zap.String("remote", conn.RemoteAddr().String())))

		if !t.addConn(tcpConn) {
			conn.Close()
			return nil
		}
		t.stopWaiter.Add(1)

		go func() {
			defer t.stopWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

// addConn registers conn, unless the server is already closing.
func (t *TCP) addConn(conn *TCPConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	t.activeConns[conn] = struct{}{}
	return true
}

func (t *TCP) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	// handlers tracks in flight async handler calls
	handlers sync.WaitGroup

	conn     net.Conn
	handler  Handler
	async    bool
	maxFrame uint32

	writeQueue chan []byte
	closeOnce  sync.Once

	log *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	conn net.Conn,
	handler Handler,
	async bool,
	maxFrame uint32,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		handler:    handler,
		async:      async,
		maxFrame:   maxFrame,
		writeQueue: make(chan []byte, WriteQueueSize),
		log:        log,
	}
}

// Close stops both loops and closes the connection.
func (t *TCPConn) Close() (err error) {
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
		if isClosedErr(err) {
			err = nil
		}
	})

	return err
}

// Start runs the read and write loops and returns once both have exited.
func (t *TCPConn) Start() {
	t.loopWaiter.Add(2)

	go func() {
		defer t.loopWaiter.Done()
		t.ReadLoop()
	}()

	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	t.loopWaiter.Wait()
	t.Close()
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")

	defer func() {
		// Let handlers still running finish before the write loop is told
		// there is nothing more to send.
		t.handlers.Wait()
		close(t.writeQueue)

		log.Debug("Read loop exited")
	}()

	for {
		h, body, err := protocol.ReadFrame(t.conn, t.maxFrame)
		if err != nil {
			if errors.Is(err, io.EOF) || isClosedErr(err) || t.ctx.Err() != nil {
				log.Debug("Client went away")
			} else {
				log.Warn("Failed to read client request", zap.Error(err))
			}

			return
		}

		if !t.async {
			t.dispatch(h.RequestID, body)
			continue
		}

		t.handlers.Add(1)
		go func() {
			defer t.handlers.Done()
			t.dispatch(h.RequestID, body)
		}()
	}
}

func (t *TCPConn) dispatch(id protocol.RequestID, body []byte) {
	resp, err := t.handler(t.ctx, id, body)
	if err != nil {
		t.log.Warn("Handler failed",
			zap.Uint32("requestID", uint32(id)),
			zap.Error(err))
		return
	}

	if resp == nil {
		return
	}

	frame, err := protocol.AppendFrame(id, resp)
	if err != nil {
		t.log.Warn("Failed to frame response",
			zap.Uint32("requestID", uint32(id)),
			zap.Error(err))
		return
	}

	select {
	case t.writeQueue <- frame:
	case <-t.ctx.Done():
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	defer log.Debug("Write loop exited")

	for {
		select {
		case <-t.ctx.Done():
			return

		// These are responses to requests handled by the read loop
		case frame, ok := <-t.writeQueue:
			if !ok {
				// Our read loop has terminated, we should too
				return
			}

			if _, err := t.conn.Write(frame); err != nil {
				log.Warn("Failed to write response", zap.Error(err))
				t.Close()
				return
			}
		}
	}
}

func isClosedErr(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection"))
}
