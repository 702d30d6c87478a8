package altidproto

type parseFn func(*cursor) Msg

var msgParseLUT = [...]parseFn{
	MsgTversion: parseTversion,
	MsgRversion: parseRversion,
	MsgTauth:    parseTauth,
	MsgRauth:    parseRauth,
	MsgTattach:  parseTattach,
	MsgRattach:  parseRattach,
	MsgRerror:   parseRerror,
	MsgTflush:   parseTflush,
	MsgRflush:   func(*cursor) Msg { return Rflush{} },
	MsgTwalk:    parseTwalk,
	MsgRwalk:    parseRwalk,
	MsgTopen:    parseTopen,
	MsgRopen:    parseRopen,
	MsgTcreate:  parseTcreate,
	MsgRcreate:  parseRcreate,
	MsgTread:    parseTread,
	MsgRread:    parseRread,
	MsgTwrite:   parseTwrite,
	MsgRwrite:   parseRwrite,
	MsgTclunk:   func(c *cursor) Msg { return Tclunk{Fid: c.uint32()} },
	MsgRclunk:   func(*cursor) Msg { return Rclunk{} },
	MsgTremove:  func(c *cursor) Msg { return Tremove{Fid: c.uint32()} },
	MsgRremove:  func(*cursor) Msg { return Rremove{} },
	MsgTstat:    func(c *cursor) Msg { return Tstat{Fid: c.uint32()} },
	MsgRstat:    parseRstat,
	MsgTwstat:   parseTwstat,
	MsgRwstat:   func(*cursor) Msg { return Rwstat{} },
}

// Unmarshal decodes the body of a message of type t. The body is
// everything after the 7-byte header. Errors are of type
// *DecodeError, wrapping ErrTruncated, ErrUnknownOperation or
// ErrMalformedStat. The returned message may reference body.
func Unmarshal(t uint8, tag uint16, body []byte) (Msg, error) {
	if !KnownType(t) {
		return nil, &DecodeError{Type: t, Tag: tag, Err: ErrUnknownOperation}
	}
	if len(body) < minSizeLUT[t] {
		return nil, &DecodeError{Type: t, Tag: tag, Err: ErrTruncated}
	}
	c := cursor{buf: body}
	m := msgParseLUT[t](&c)
	if c.err != nil {
		return nil, &DecodeError{Type: t, Tag: tag, Err: c.err}
	}
	return m, nil
}

func parseTversion(c *cursor) Msg {
	return Tversion{Msize: c.uint32(), Version: c.string()}
}

func parseRversion(c *cursor) Msg {
	return Rversion{Msize: c.uint32(), Version: c.string()}
}

func parseTauth(c *cursor) Msg {
	return Tauth{Afid: c.uint32(), Uname: c.string(), Aname: c.string()}
}

func parseRauth(c *cursor) Msg {
	return Rauth{Aqid: c.qid()}
}

func parseTattach(c *cursor) Msg {
	return Tattach{
		Fid:   c.uint32(),
		Afid:  c.uint32(),
		Uname: c.string(),
		Aname: c.string(),
	}
}

func parseRattach(c *cursor) Msg {
	return Rattach{Qid: c.qid()}
}

func parseRerror(c *cursor) Msg {
	return Rerror{Ename: c.string()}
}

func parseTflush(c *cursor) Msg {
	return Tflush{Oldtag: c.uint16()}
}

func parseTwalk(c *cursor) Msg {
	m := Twalk{Fid: c.uint32(), Newfid: c.uint32()}
	n := int(c.uint16())
	if n > MaxWElem {
		c.err = errLongWalk
		return m
	}
	if n > 0 {
		m.Wname = make([]string, 0, n)
	}
	for i := 0; i < n && c.err == nil; i++ {
		m.Wname = append(m.Wname, c.string())
	}
	return m
}

func parseRwalk(c *cursor) Msg {
	var m Rwalk
	n := int(c.uint16())
	if n > MaxWElem {
		c.err = errLongWalk
		return m
	}
	if n > 0 {
		m.Wqid = make([]Qid, 0, n)
	}
	for i := 0; i < n && c.err == nil; i++ {
		m.Wqid = append(m.Wqid, c.qid())
	}
	return m
}

func parseTopen(c *cursor) Msg {
	return Topen{Fid: c.uint32(), Mode: c.uint8()}
}

func parseRopen(c *cursor) Msg {
	return Ropen{Qid: c.qid(), Iounit: c.uint32()}
}

func parseTcreate(c *cursor) Msg {
	return Tcreate{
		Fid:  c.uint32(),
		Name: c.string(),
		Perm: c.uint32(),
		Mode: c.uint8(),
	}
}

func parseRcreate(c *cursor) Msg {
	return Rcreate{Qid: c.qid(), Iounit: c.uint32()}
}

func parseTread(c *cursor) Msg {
	return Tread{Fid: c.uint32(), Offset: c.uint64(), Count: c.uint32()}
}

func parseRread(c *cursor) Msg {
	n := c.uint32()
	return Rread{Data: c.next(int(n))}
}

func parseTwrite(c *cursor) Msg {
	m := Twrite{Fid: c.uint32(), Offset: c.uint64()}
	n := c.uint32()
	m.Data = c.next(int(n))
	return m
}

func parseRwrite(c *cursor) Msg {
	return Rwrite{Count: c.uint32()}
}

func parseRstat(c *cursor) Msg {
	s, err := c.stat()
	if err != nil {
		c.err = err
	}
	return Rstat{Stat: s}
}

func parseTwstat(c *cursor) Msg {
	m := Twstat{Fid: c.uint32()}
	s, err := c.stat()
	if err != nil {
		c.err = err
	}
	m.Stat = s
	return m
}
