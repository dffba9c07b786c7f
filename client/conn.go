package client

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/xdrprobe/internal/queue"
	"github.com/luma/xdrprobe/protocol"
	"github.com/luma/xdrprobe/readylog"
	"github.com/luma/xdrprobe/xdr"
)

// Codec turns requests into frame bodies and frame bodies into responses.
// It is supplied by the service schema.
type Codec struct {
	Encode xdr.Packer
	Decode xdr.Unpacker
}

type Options struct {
	// Addr is the host:port of the server under test
	Addr string

	Codec Codec

	// DialTimeout bounds connection setup. Zero means no limit.
	DialTimeout time.Duration

	// ReadyLog, when set, is followed until an EVENT line carrying
	// ReadyMarker appears before dialling.
	ReadyLog     string
	ReadyMarker  string
	ReadyTimeout time.Duration

	// MaxFrameSize bounds the body of a single response
	MaxFrameSize uint32

	// Subordinate is released when the connection shuts down, or when Dial
	// fails. Typically it supervises the server process.
	Subordinate io.Closer

	Log *zap.Logger
}

type response struct {
	id    protocol.RequestID
	value interface{}
}

// Conn is a connection to the server that matches responses to requests by
// request id.
//
// A background read loop owns the read half of the connection. It decodes
// every frame and pushes it onto an unbounded queue. Callers of GetResponse
// move responses from the queue into a table keyed by request id and pick
// theirs out of it. Nothing is ever removed from the table.
type Conn struct {
	conn        net.Conn
	codec       Codec
	maxFrame    uint32
	subordinate io.Closer
	state       int32

	// writeMu serialises id allocation and frame writes
	writeMu sync.Mutex
	nextID  uint64

	queue *queue.Queue

	mu        sync.Mutex
	responses map[protocol.RequestID]interface{}
	installed chan struct{}
	closed    bool

	// readErr is written once, before readerDone is closed
	readerDone chan struct{}
	readErr    error

	log *zap.Logger
}

// Dial connects to opts.Addr and starts the read loop. When opts.ReadyLog is
// set it first waits for the server to report readiness.
//
// If Dial fails the subordinate is closed before the error is returned.
func Dial(ctx context.Context, opts Options) (c *Conn, err error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("addr", opts.Addr))

	defer func() {
		if err != nil && opts.Subordinate != nil {
			err = multierr.Append(err, opts.Subordinate.Close())
		}
	}()

	if opts.ReadyLog != "" {
		if err := waitReady(ctx, opts, log); err != nil {
			return nil, err
		}
	}

	log.Debug("Connecting", zap.String("state", Connecting.String()))

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + opts.Addr, Err: err}
	}

	opts.Log = log
	return New(nc, opts), nil
}

func waitReady(ctx context.Context, opts Options, log *zap.Logger) error {
	if opts.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ReadyTimeout)
		defer cancel()
	}

	follower := readylog.NewFollower(opts.ReadyLog, 0, log.Named("readylog"))
	if _, err := follower.WaitFor(ctx, opts.ReadyMarker); err != nil {
		return &ConnectionError{Op: "wait for " + opts.ReadyMarker, Err: err}
	}

	return nil
}

// New wraps an established connection and starts its read loop. The Conn
// takes ownership of nc.
func New(nc net.Conn, opts Options) *Conn {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	maxFrame := opts.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = protocol.DefaultMaxBodySize
	}

	c := &Conn{
		conn:        nc,
		codec:       opts.Codec,
		maxFrame:    maxFrame,
		subordinate: opts.Subordinate,
		queue:       queue.New(),
		responses:   make(map[protocol.RequestID]interface{}),
		installed:   make(chan struct{}),
		readerDone:  make(chan struct{}),
		log:         log.Named("client").With(zap.String("session", uuid.New().String())),
	}

	c.setState(Connected)
	go c.readLoop()

	return c
}

// State is Connected from New until Shutdown begins.
func (c *Conn) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Conn) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
	c.log.Debug("State changed", zap.String("state", s.String()))
}

// PutRequest encodes cmd, frames it under the next request id and writes the
// frame. Ids start at 0 and increase by one per request; they are never
// reused. A request that fails to encode writes nothing.
func (c *Conn) PutRequest(cmd interface{}) (protocol.RequestID, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}

	body, err := c.codec.Encode(cmd)
	if err != nil {
		return 0, fmt.Errorf("Failed to encode request: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.nextID > math.MaxUint32 {
		return 0, ErrIDsExhausted
	}

	id := protocol.RequestID(c.nextID)
	c.nextID++

	if err := protocol.WriteFrame(c.conn, id, body); err != nil {
		return id, &ConnectionError{Op: fmt.Sprintf("write request %d", id), Err: err}
	}

	c.log.Debug("Sent request",
		zap.Uint32("requestID", uint32(id)),
		zap.Int("bodyLength", len(body)))

	return id, nil
}

// GetResponse blocks until the response to id has arrived and returns it.
// Asking again for the same id returns the same value.
//
// GetResponse imposes no deadline of its own. Cancelling ctx is the only way
// to bound the wait. If the read loop dies before the response arrives the
// read loop's error is returned.
func (c *Conn) GetResponse(ctx context.Context, id protocol.RequestID) (interface{}, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if v, ok := c.responses[id]; ok {
			c.mu.Unlock()
			return v, nil
		}
		installed := c.installed
		c.mu.Unlock()

		if c.drain() {
			continue
		}

		select {
		case <-c.queue.Ready():
		case <-installed:
		case <-c.readerDone:
			v, final, err := c.afterReaderDone(id)
			if !final {
				continue
			}
			return v, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// drain moves every queued response into the table and reports whether it
// moved any. Popping and installing happen under mu, so a response is never
// out of both the queue and the table while mu is free.
func (c *Conn) drain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := false
	for {
		v, ok := c.queue.TryPop()
		if !ok {
			return moved
		}

		c.install(v.(response))
		moved = true
	}
}

// install must be called with mu held.
func (c *Conn) install(resp response) {
	if _, dup := c.responses[resp.id]; dup {
		c.log.Warn("Duplicate response ignored", zap.Uint32("requestID", uint32(resp.id)))
		return
	}

	c.responses[resp.id] = resp.value

	// wake every waiter so they re-check the table
	close(c.installed)
	c.installed = make(chan struct{})
}

// afterReaderDone settles a wait once the read loop has exited. It is not
// final while responses are still queued.
func (c *Conn) afterReaderDone(id protocol.RequestID) (v interface{}, final bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.responses[id]; ok {
		return v, true, nil
	}

	if c.queue.Len() > 0 {
		return nil, false, nil
	}

	if c.closed {
		return nil, true, ErrClosed
	}

	return nil, true, &ConnectionError{Op: fmt.Sprintf("await response %d", id), Err: c.readErr}
}

// Err returns the error that stopped the read loop, or nil while it runs.
func (c *Conn) Err() error {
	select {
	case <-c.readerDone:
		return c.readErr
	default:
		return nil
	}
}

// Shutdown closes the connection, waits for the read loop to exit and then
// releases the subordinate. It may be called once; later calls return
// ErrClosed, as does every other method.
func (c *Conn) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.setState(Draining)

	// Closing the connection unblocks the read loop
	err := c.conn.Close()
	<-c.readerDone

	if c.subordinate != nil {
		err = multierr.Append(err, c.subordinate.Close())
	}

	c.setState(Closed)
	return err
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	var err error
	defer func() {
		c.readErr = err
		close(c.readerDone)

		if c.isClosed() {
			log.Debug("Read loop exited", zap.Error(err))
		} else {
			log.Warn("Read loop terminated", zap.Error(err))
		}
	}()

	for {
		h, body, rerr := protocol.ReadFrame(c.conn, c.maxFrame)
		if rerr != nil {
			err = rerr
			return
		}

		v, rest, derr := c.codec.Decode(body)
		if derr != nil {
			err = fmt.Errorf("Failed to decode response %d: %w", h.RequestID, derr)
			return
		}

		if len(rest) > 0 {
			log.Warn("Response body has trailing bytes",
				zap.Uint32("requestID", uint32(h.RequestID)),
				zap.Int("trailing", len(rest)))
		}

		c.queue.Push(response{id: h.RequestID, value: v})
	}
}
