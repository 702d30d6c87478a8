package altid

import (
	"fmt"
	"time"

	"github.com/go-kit/log/level"

	"aqwari.net/net/altid/altidproto"
)

// A Callback receives the response to a request. Exactly one of msg
// and err is nil. An Rerror response is delivered as a *RemoteError.
type Callback func(msg altidproto.Msg, err error)

type request struct {
	msg altidproto.Msg

	// If not nil, prep builds msg on the event loop, just before
	// the request is sent. Requests that allocate fids or depend
	// on the negotiated msize use it.
	prep func() (altidproto.Msg, error)

	// If not nil, settle is called once the outcome of a timed-out
	// request is known: with the late response if it arrives before
	// Rflush, or with nil if the server flushed the request first.
	settle func(altidproto.Msg)

	cb    Callback
	tag   uint16
	notag bool
	sent  time.Time
}

// Submit queues m to be sent to the server, and arranges for cb to
// be called with the response. The caller is responsible for the
// fids named in m; most programs should use Walk and the Handle
// methods instead.
func (c *Conn) Submit(m altidproto.Msg, cb Callback) {
	c.submit(&request{msg: m, cb: cb})
}

func (c *Conn) submit(r *request) {
	c.mu.Lock()
	if err := c.closed; err != nil {
		c.mu.Unlock()
		r.cb(nil, err)
		return
	}
	c.queue = append(c.queue, r)
	n := len(c.queue)
	c.mu.Unlock()

	c.metrics.setQueued(n)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pushFront is only called from the event loop.
func (c *Conn) pushFront(r *request) {
	c.mu.Lock()
	c.queue = append([]*request{r}, c.queue...)
	c.mu.Unlock()
}

func (c *Conn) dequeue() *request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	r := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.metrics.setQueued(len(c.queue))
	return r
}

// drain sends the next queued request, if nothing is in flight.
// Requests that fail before reaching the wire are completed here,
// and the next one is tried.
func (c *Conn) drain() {
	for c.inflight == nil && c.failure == nil && c.State() == StateReady {
		r := c.dequeue()
		if r == nil {
			return
		}
		c.send(r)
	}
}

func (c *Conn) send(r *request) {
	if r.prep != nil {
		m, err := r.prep()
		if err != nil {
			r.cb(nil, err)
			return
		}
		r.msg = m
	}
	if r.notag {
		r.tag = altidproto.NoTag
	} else {
		tag, err := c.handles.tag()
		if err != nil {
			r.cb(nil, err)
			return
		}
		r.tag = tag
	}

	c.trace.Tx(r.tag, r.msg)
	if err := c.enc.Encode(r.tag, r.msg); err != nil {
		if !r.notag {
			c.handles.freeTag(r.tag)
		}
		if werr := c.enc.Err(); werr != nil {
			// The transport is gone; r is failed along with
			// everything else.
			c.inflight = r
			c.failure = werr
			return
		}
		r.cb(nil, err)
		return
	}
	r.sent = time.Now()
	c.inflight = r
	c.metrics.sent(r)

	if d := c.client.Timeout; d > 0 && r.msg.Type() != altidproto.MsgTread && r.msg.Type() != altidproto.MsgTflush {
		c.timer = time.NewTimer(d)
	}
}

// receive matches a response to the request in flight.
func (c *Conn) receive(tag uint16, m altidproto.Msg) {
	c.trace.Rx(tag, m)

	r := c.inflight
	if r == nil || tag != r.tag {
		if x := c.expired; x != nil && tag == x.tag {
			level.Debug(c.log).Log("msg", "late response to flushed request", "tag", tag, "type", altidproto.MsgName(m.Type()))
			if settle := x.settle; settle != nil {
				x.settle = nil
				settle(m)
			}
			return
		}
		c.metrics.discard()
		level.Warn(c.log).Log("msg", "discarding response", "tag", tag, "type", altidproto.MsgName(m.Type()), "err", ErrTagMismatch)
		return
	}

	c.inflight = nil
	c.stopTimer()
	if !r.notag {
		c.handles.freeTag(r.tag)
	}

	var err error
	switch m := m.(type) {
	case altidproto.BadMessage:
		err = m.Err
	case altidproto.Rerror:
		err = &RemoteError{Ename: m.Ename}
	default:
		if m.Type() != r.msg.Type()+1 {
			err = fmt.Errorf("%w: %s in reply to %s", ErrUnexpectedResponse,
				altidproto.MsgName(m.Type()), altidproto.MsgName(r.msg.Type()))
		}
	}
	c.metrics.done(r, err)
	if err != nil {
		r.cb(nil, err)
	} else {
		r.cb(m, nil)
	}
}

// expire fails the request in flight with ErrTimeout, and asks the
// server to forget about it. Its tag stays reserved until the
// server acknowledges the flush. A response to the expired request
// that arrives before Rflush still settles its effect on the fid
// table.
func (c *Conn) expire() {
	c.timer = nil
	r := c.inflight
	if r == nil {
		return
	}
	c.inflight = nil
	c.metrics.timeout()
	c.metrics.done(r, ErrTimeout)
	level.Warn(c.log).Log("msg", "request timed out", "tag", r.tag, "type", altidproto.MsgName(r.msg.Type()))

	if !r.notag {
		c.expired = r
		c.pushFront(&request{
			msg: altidproto.Tflush{Oldtag: r.tag},
			cb: func(altidproto.Msg, error) {
				if c.expired != r {
					// the session was reset
					return
				}
				c.expired = nil
				c.handles.freeTag(r.tag)
				if settle := r.settle; settle != nil {
					r.settle = nil
					settle(nil)
				}
			},
		})
	}
	r.cb(nil, ErrTimeout)
}
