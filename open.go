package altid

import "aqwari.net/net/altid/altidproto"

// check runs on the event loop before a request on h is sent.
func (h *Handle) check() error {
	if h == nil || !h.conn.handles.valid(h) {
		return ErrStaleHandle
	}
	return nil
}

// Open prepares h for I/O. Mode is one of altidproto.OREAD,
// OWRITE, ORDWR or OEXEC, optionally or'ed with OTRUNC and ORCLOSE.
func (h *Handle) Open(mode uint8, cb func(error)) {
	h.conn.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			return altidproto.Topen{Fid: h.Fid, Mode: mode}, nil
		},
		cb: func(m altidproto.Msg, err error) {
			if err == nil {
				r := m.(altidproto.Ropen)
				h.Qid, h.Iounit = r.Qid, r.Iounit
			}
			cb(err)
		},
	})
}

// Create creates a file called name in the directory h, and opens
// it with the given mode. On success, h refers to the new file.
func (h *Handle) Create(name string, perm uint32, mode uint8, cb func(error)) {
	// a late Rcreate still moves the fid to the new file
	created := func(r altidproto.Rcreate) {
		h.Qid, h.Iounit = r.Qid, r.Iounit
		h.Name = joinName(h.Name, name)
	}
	h.conn.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			return altidproto.Tcreate{Fid: h.Fid, Name: name, Perm: perm, Mode: mode}, nil
		},
		settle: func(m altidproto.Msg) {
			if r, ok := m.(altidproto.Rcreate); ok {
				created(r)
			}
		},
		cb: func(m altidproto.Msg, err error) {
			if err == nil {
				created(m.(altidproto.Rcreate))
			}
			cb(err)
		},
	})
}

func joinName(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
