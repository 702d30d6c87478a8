package altid

import (
	"errors"

	"aqwari.net/net/altid/altidproto"
)

// iosize is the largest read or write payload that fits in a
// single message.
func (c *Conn) iosize() uint32 {
	return c.msize.Load() - altidproto.IOHeaderSize
}

// ReadAt reads up to count bytes at offset from an open handle.
// Count is reduced to fit in a single message. An empty result
// means end of file. Client.Timeout does not apply to reads.
func (h *Handle) ReadAt(offset uint64, count uint32, cb func([]byte, error)) {
	c := h.conn
	c.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			if max := c.iosize(); count > max {
				count = max
			}
			return altidproto.Tread{Fid: h.Fid, Offset: offset, Count: count}, nil
		},
		cb: func(m altidproto.Msg, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			cb(m.(altidproto.Rread).Data, nil)
		},
	})
}

// WriteAt writes data at offset to an open handle in a single
// message. If data does not fit, only a prefix is written; cb
// receives the number of bytes the server accepted.
func (h *Handle) WriteAt(offset uint64, data []byte, cb func(int, error)) {
	c := h.conn
	c.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			if max := c.iosize(); uint32(len(data)) > max {
				data = data[:max]
			}
			return altidproto.Twrite{Fid: h.Fid, Offset: offset, Data: data}, nil
		},
		cb: func(m altidproto.Msg, err error) {
			if err != nil {
				cb(0, err)
				return
			}
			cb(int(m.(altidproto.Rwrite).Count), nil)
		},
	})
}

// Clunk tells the server the handle is no longer needed. The fid is
// released once the server answers, whether or not the clunk
// succeeded. After a timeout, the fid is released once the server
// has answered the flush.
func (h *Handle) Clunk(cb func(error)) {
	h.release(altidproto.Tclunk{Fid: h.Fid}, cb)
}

// Remove removes the file and clunks the handle, even if the remove
// fails.
func (h *Handle) Remove(cb func(error)) {
	h.release(altidproto.Tremove{Fid: h.Fid}, cb)
}

// If a clunk or remove times out and the server flushes it, the fid
// is still in use on the server, so a plain Tclunk is sent in its
// place.
func (h *Handle) release(m altidproto.Msg, cb func(error)) {
	c := h.conn
	c.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			return m, nil
		},
		settle: func(late altidproto.Msg) {
			if late != nil {
				c.handles.release(h)
				return
			}
			h.release(altidproto.Tclunk{Fid: h.Fid}, func(error) {})
		},
		cb: func(_ altidproto.Msg, err error) {
			if !errors.Is(err, ErrTimeout) {
				c.handles.release(h)
			}
			cb(err)
		},
	})
}

// Stat fetches the directory entry of the handle's file.
func (h *Handle) Stat(cb func(altidproto.Stat, error)) {
	h.conn.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			return altidproto.Tstat{Fid: h.Fid}, nil
		},
		cb: func(m altidproto.Msg, err error) {
			if err != nil {
				cb(altidproto.Stat{}, err)
				return
			}
			cb(m.(altidproto.Rstat).Stat, nil)
		},
	})
}
