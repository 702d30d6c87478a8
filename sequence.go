package altid

import (
	"github.com/go-kit/log/level"

	"aqwari.net/net/altid/altidproto"
)

// The functions in this file run a whole sequence of requests for
// the caller, each step submitted from the callback of the one
// before. A sequence stops at the first error, but a fid obtained by
// its walk is always clunked before the final callback runs.

// finish clunks h and then calls done. A failed clunk is only
// logged; the outcome of the sequence is already known.
func (c *Conn) finish(h *Handle, done func()) {
	h.Clunk(func(err error) {
		if err != nil {
			level.Debug(c.log).Log("msg", "clunk failed", "fid", h.Fid, "name", h.Name, "err", err)
		}
		done()
	})
}

// ReadFile reads up to count bytes at offset from the named file:
// walk, open for reading, read, clunk.
func (c *Conn) ReadFile(names []string, offset uint64, count uint32, cb func([]byte, error)) {
	c.Walk(names, func(h *Handle, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		h.Open(altidproto.OREAD, func(err error) {
			if err != nil {
				c.finish(h, func() { cb(nil, err) })
				return
			}
			h.ReadAt(offset, count, func(data []byte, err error) {
				c.finish(h, func() { cb(data, err) })
			})
		})
	})
}

// WriteFile writes data to the named file starting at offset 0:
// walk, open for writing, as many writes as needed, clunk. The
// callback receives the number of bytes written.
func (c *Conn) WriteFile(names []string, data []byte, cb func(int, error)) {
	c.Walk(names, func(h *Handle, err error) {
		if err != nil {
			cb(0, err)
			return
		}
		h.Open(altidproto.OWRITE, func(err error) {
			if err != nil {
				c.finish(h, func() { cb(0, err) })
				return
			}
			c.writeAll(h, data, 0, func(n int, err error) {
				c.finish(h, func() { cb(n, err) })
			})
		})
	})
}

// writeAll writes data in as many messages as the msize requires.
// Empty data is still sent, as a single zero-length write.
func (c *Conn) writeAll(h *Handle, data []byte, written int, cb func(int, error)) {
	h.WriteAt(uint64(written), data[written:], func(n int, err error) {
		written += n
		switch {
		case err != nil:
			cb(written, err)
		case written >= len(data):
			cb(written, nil)
		case n == 0:
			cb(written, errShortWrite)
		default:
			c.writeAll(h, data, written, cb)
		}
	})
}

// StatFile fetches the directory entry of the named file.
func (c *Conn) StatFile(names []string, cb func(altidproto.Stat, error)) {
	c.Walk(names, func(h *Handle, err error) {
		if err != nil {
			cb(altidproto.Stat{}, err)
			return
		}
		h.Stat(func(st altidproto.Stat, err error) {
			c.finish(h, func() { cb(st, err) })
		})
	})
}

// WstatFile changes the directory entry of the named file.
func (c *Conn) WstatFile(names []string, st altidproto.Stat, cb func(error)) {
	c.Walk(names, func(h *Handle, err error) {
		if err != nil {
			cb(err)
			return
		}
		h.Wstat(st, func(err error) {
			c.finish(h, func() { cb(err) })
		})
	})
}

// RemoveFile removes the named file. Tremove clunks the fid, so no
// separate clunk is sent.
func (c *Conn) RemoveFile(names []string, cb func(error)) {
	c.Walk(names, func(h *Handle, err error) {
		if err != nil {
			cb(err)
			return
		}
		h.Remove(cb)
	})
}

// CreateFile creates name in the directory dir with the given
// permissions, opened with mode, and clunks it again.
func (c *Conn) CreateFile(dir []string, name string, perm uint32, mode uint8, cb func(error)) {
	c.Walk(dir, func(h *Handle, err error) {
		if err != nil {
			cb(err)
			return
		}
		h.Create(name, perm, mode, func(err error) {
			c.finish(h, func() { cb(err) })
		})
	})
}
