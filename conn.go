package altid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/tracing"
)

// A Conn is a 9P session with a single server. Requests are sent
// one at a time, in the order they were submitted; a request is not
// written until the response to the previous one has arrived.
//
// Every Conn runs an event loop goroutine. Callbacks passed to Conn
// methods are called from that goroutine, one at a time, and may
// submit further requests. A callback must not block waiting for
// another request on the same Conn.
type Conn struct {
	client   *Client
	id       string
	endpoint string
	log      log.Logger
	trace    tracing.TraceFn
	metrics  *Metrics

	// nil for connections that were not dialed by the Client;
	// such connections never reconnect.
	dial DialFunc

	state atomic.Int32
	msize atomic.Uint32

	// mu protects the fields below it.
	mu     sync.Mutex
	queue  []*request
	closed error
	rwc    io.ReadWriteCloser

	wake       chan struct{}
	cancelc    chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	ctx        context.Context
	stop       context.CancelFunc

	// Everything below is owned by the event loop.
	enc      *altidproto.Encoder
	frames   <-chan inbound
	quit     chan struct{}
	inflight *request
	timer    *time.Timer
	handles  handleTable
	root     *Handle
	retries  int
	failure  error
	attached chan<- error

	// the timed-out request, while its Tflush is outstanding
	expired *request

	// set while pending requests are being failed
	tearing bool
}

// A frame or error from the reader goroutine.
type inbound struct {
	tag uint16
	msg altidproto.Msg
	err error
}

func newConn(client *Client, endpoint string, dial DialFunc) *Conn {
	id := uuid.New().String()
	logger := log.With(client.logger(), "conn", id)
	if endpoint != "" {
		logger = log.With(logger, "endpoint", endpoint)
	}
	ctx, stop := context.WithCancel(context.Background())
	c := &Conn{
		client:   client,
		id:       id,
		endpoint: endpoint,
		log:      logger,
		metrics:  client.Metrics,
		dial:     dial,
		wake:     make(chan struct{}, 1),
		cancelc:  make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		stop:     stop,
	}
	if client.TraceLog != nil {
		c.trace = tracing.Logger(log.With(client.TraceLog, "conn", id))
	}
	c.msize.Store(client.maxSize())
	return c
}

// ID returns a unique identifier for the connection, used in logs.
func (c *Conn) ID() string { return c.id }

// Endpoint returns the endpoint the connection was dialed with, or
// the empty string for connections created with NewConn.
func (c *Conn) Endpoint() string { return c.endpoint }

// State returns the current state of the connection.
func (c *Conn) State() State { return State(c.state.Load()) }

// Msize returns the maximum message size in effect on the
// connection.
func (c *Conn) Msize() uint32 { return c.msize.Load() }

// Done returns a channel that is closed once the connection has
// stopped for good, either because it was cancelled or because it
// failed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the connection, or nil if the
// connection is still running.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Cancel closes the transport and fails every pending request with
// ErrClosed. Open handles are discarded without being clunked.
// Cancel does not wait for the event loop to finish, so it may be
// called from a callback.
func (c *Conn) Cancel() {
	c.cancelOnce.Do(func() {
		close(c.cancelc)
		c.stop()
		c.mu.Lock()
		rwc := c.rwc
		c.mu.Unlock()
		if rwc != nil {
			rwc.Close()
		}
	})
}

// Close cancels the connection and waits for its event loop to
// exit. If the connection had already failed, Close returns the
// error that stopped it. Close must not be called from a callback.
func (c *Conn) Close() error {
	c.Cancel()
	<-c.done
	if err := c.Err(); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func (c *Conn) cancelled() bool {
	select {
	case <-c.cancelc:
		return true
	default:
		return false
	}
}

func (c *Conn) setState(s State, err error) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if err != nil {
		level.Info(c.log).Log("msg", "state change", "state", s, "err", err)
	} else {
		level.Debug(c.log).Log("msg", "state change", "state", s)
	}
	if c.client.OnStateChange != nil {
		c.client.OnStateChange(c, s, err)
	}
}

// start begins a session on a new transport. The version and
// attach requests jump the queue.
func (c *Conn) start(rwc io.ReadWriteCloser) {
	c.mu.Lock()
	c.rwc = rwc
	c.mu.Unlock()

	msize := c.client.maxSize()
	c.msize.Store(msize)
	c.enc = altidproto.NewEncoder(rwc)
	c.enc.MaxSize = int64(msize)

	dec := altidproto.NewDecoder(rwc)
	dec.MaxSize = int64(msize)
	frames := make(chan inbound)
	c.frames = frames
	c.quit = make(chan struct{})
	go c.readLoop(dec, frames, c.quit)

	c.handles.reset()
	c.root = nil
	c.expired = nil
	c.setState(StateReady, nil)

	c.pushFront(c.attachRequest())
	c.pushFront(c.versionRequest(msize))
}

func (c *Conn) versionRequest(msize uint32) *request {
	return &request{
		msg:   altidproto.Tversion{Msize: msize, Version: altidproto.Version},
		notag: true,
		cb: func(m altidproto.Msg, err error) {
			if err != nil {
				if !c.tearing {
					c.failure = fmt.Errorf("version: %w", err)
				}
				return
			}
			rv := m.(altidproto.Rversion)
			if !strings.HasPrefix(rv.Version, altidproto.Version) {
				c.failure = fmt.Errorf("%w: server offered %q", ErrVersionMismatch, rv.Version)
				return
			}
			if rv.Msize < msize {
				msize = rv.Msize
			}
			if msize <= altidproto.IOHeaderSize {
				c.failure = fmt.Errorf("%w: %d", errSmallMsize, msize)
				return
			}
			c.msize.Store(msize)
			c.enc.MaxSize = int64(msize)
			level.Debug(c.log).Log("msg", "negotiated version", "version", rv.Version, "msize", msize)
		},
	}
}

func (c *Conn) attachRequest() *request {
	var root *Handle
	return &request{
		prep: func() (altidproto.Msg, error) {
			var err error
			if root, err = c.handles.allocate(c, "/"); err != nil {
				return nil, err
			}
			return altidproto.Tattach{
				Fid:   root.Fid,
				Afid:  altidproto.NoAuth,
				Uname: c.client.user(),
				Aname: c.client.aname(),
			}, nil
		},
		cb: func(m altidproto.Msg, err error) {
			if err != nil {
				c.handles.release(root)
				if !c.tearing {
					c.failure = fmt.Errorf("attach: %w", err)
				}
				return
			}
			root.Qid = m.(altidproto.Rattach).Qid
			c.root = root
			c.retries = 0
			if c.attached != nil {
				c.attached <- nil
				c.attached = nil
			}
			level.Debug(c.log).Log("msg", "attached", "user", c.client.user(), "aname", c.client.aname())
		},
	}
}

// runs in its own goroutine, one per transport.
func (c *Conn) readLoop(dec *altidproto.Decoder, frames chan<- inbound, quit <-chan struct{}) {
	for dec.Next() {
		select {
		case frames <- inbound{tag: dec.Tag(), msg: dec.Msg()}:
		case <-quit:
			return
		}
	}
	err := dec.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case frames <- inbound{err: err}:
	case <-quit:
	}
}

// runs in its own goroutine, one per connection.
func (c *Conn) run() {
	defer close(c.done)
	defer c.stop()

	for {
		if c.failure != nil {
			if !c.recover() {
				return
			}
			continue
		}
		c.drain()
		if c.failure != nil {
			continue
		}
		select {
		case <-c.wake:
		case in := <-c.frames:
			if in.err != nil {
				c.failure = in.err
				continue
			}
			c.receive(in.tag, in.msg)
		case <-c.timerC():
			c.expire()
		case <-c.cancelc:
			c.shutdown(StateDisconnected, ErrClosed)
			return
		}
	}
}

func (c *Conn) timerC() <-chan time.Time {
	if c.timer == nil {
		return nil
	}
	return c.timer.C
}

func (c *Conn) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// recover handles c.failure. It returns false if the connection is
// finished.
func (c *Conn) recover() bool {
	err := transportError(c.failure)
	c.failure = nil

	if c.cancelled() {
		c.shutdown(StateDisconnected, ErrClosed)
		return false
	}
	if c.dial == nil || !isAborted(err) || c.retries > 0 {
		level.Error(c.log).Log("msg", "connection failed", "err", err)
		c.shutdown(StateFailed, err)
		return false
	}

	c.retries++
	c.metrics.reconnect()
	c.dropTransport()
	c.flush(err)
	c.setState(StateConnecting, err)

	delay := reconnectBackoff(c.retries)
	level.Warn(c.log).Log("msg", "connection aborted, reconnecting", "err", err, "delay", delay)
	select {
	case <-time.After(delay):
	case <-c.cancelc:
		c.shutdown(StateDisconnected, ErrClosed)
		return false
	}

	rwc, derr := c.dial(c.ctx, c.endpoint)
	if derr != nil {
		if c.cancelled() {
			c.shutdown(StateDisconnected, ErrClosed)
			return false
		}
		derr = fmt.Errorf("reconnect: %w", derr)
		level.Error(c.log).Log("msg", "connection failed", "err", derr)
		c.shutdown(StateFailed, derr)
		return false
	}
	c.start(rwc)
	return true
}

// shutdown stops the connection for good. Requests submitted from
// here on fail immediately.
func (c *Conn) shutdown(s State, err error) {
	c.mu.Lock()
	c.closed = err
	c.mu.Unlock()

	c.dropTransport()
	c.flush(err)
	c.handles.reset()
	c.root = nil
	if c.attached != nil {
		c.attached <- err
		c.attached = nil
	}
	c.setState(s, err)
}

func (c *Conn) dropTransport() {
	c.stopTimer()
	c.mu.Lock()
	rwc := c.rwc
	c.rwc = nil
	c.mu.Unlock()
	if rwc != nil {
		rwc.Close()
	}
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	c.frames = nil
}

// flush fails the request in flight and every queued request.
func (c *Conn) flush(err error) {
	c.tearing = true
	defer func() { c.tearing = false }()

	c.expired = nil
	if r := c.inflight; r != nil {
		c.inflight = nil
		c.metrics.done(r, err)
		r.cb(nil, err)
	}
	c.mu.Lock()
	q := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, r := range q {
		r.cb(nil, err)
	}
	c.metrics.setQueued(0)
}
