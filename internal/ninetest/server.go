// Package ninetest provides an in-memory 9P file server for testing
// 9P clients.
package ninetest

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"aqwari.net/retry"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"

	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/filetree"
	"aqwari.net/net/altid/internal/qidpool"
	"aqwari.net/net/altid/internal/util"
)

var (
	errFidInUse    = errors.New("fid already in use")
	errNoFid       = errors.New("no such fid")
	errNotOpen     = errors.New("fid not open")
	errIsOpen      = errors.New("fid already open")
	errIsDir       = errors.New("is a directory")
	errNoAuth      = errors.New("authentication not required")
	errRefused     = errors.New("connection refused")
	errNeedVersion = errors.New("need Tversion")
)

// A Request is a message received by a Server, along with its tag.
type Request struct {
	Tag uint16
	Msg altidproto.Msg
}

// A Server is a 9P file server backed by an in-memory file tree.
// Clients connect to it over synchronous, in-memory pipes. A Server
// must be created with New.
type Server struct {
	// Msize is the largest message size the server accepts. The
	// server answers Tversion with the smaller of Msize and the
	// client's proposal.
	Msize uint32

	// If not empty, Version is returned in every Rversion,
	// regardless of what the client asked for.
	Version string

	// Intercept, if not nil, is called for every request before
	// the file tree is consulted. If handled is true, reply is
	// sent instead of the normal response. A nil reply with handled
	// set means no response is sent at all.
	Intercept func(tag uint16, m altidproto.Msg) (reply altidproto.Msg, handled bool)

	// Logger receives debug output. If nil, nothing is logged.
	Logger log.Logger

	mu          sync.Mutex
	delay       time.Duration
	files       *filetree.Tree
	qids        *qidpool.Pool
	requests    []Request
	outstanding int
	maxOut      int
	dials       int
	refuse      bool
	conns       []*conn
}

// New creates a Server with an empty root directory.
func New() *Server {
	return &Server{
		Msize: altidproto.DefaultMaxSize,
		files: filetree.New(),
		qids:  qidpool.New(),
	}
}

// Put creates or replaces a file on the server, creating parent
// directories as needed.
func (s *Server) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files.Put(name, data)
	s.qids.Bump(filetree.Clean(name))
}

// Get returns the contents of a file on the server.
func (s *Server) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.files.Get(name)
	if !ok || e.Dir {
		return nil, false
	}
	return append([]byte(nil), e.Data...), true
}

// SetDelay adds d before every later response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *Server) getDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// Requests returns every request received so far, in order of arrival.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns the number of requests received of the given type.
func (s *Server) Count(mtype uint8) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Msg.Type() == mtype {
			n++
		}
	}
	return n
}

// MaxOutstanding returns the largest number of requests the server
// has held at once without having answered them.
func (s *Server) MaxOutstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOut
}

// Dials returns the number of connections made to the server.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// RefuseDials makes later calls to Dial fail.
func (s *Server) RefuseDials(refuse bool) {
	s.mu.Lock()
	s.refuse = refuse
	s.mu.Unlock()
}

// Dial opens a new connection to the server. Its signature matches
// altid.DialFunc; endpoint is ignored.
func (s *Server) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	refuse := s.refuse
	s.mu.Unlock()
	if refuse {
		return nil, &net.OpError{Op: "dial", Net: "pipe", Err: errRefused}
	}
	return s.Pipe(), nil
}

// Pipe opens a new connection to the server and returns the client
// end.
func (s *Server) Pipe() *ClientConn {
	client, server := net.Pipe()
	c := newConn(s, server)
	c.client = &ClientConn{Conn: client, peer: server}

	s.mu.Lock()
	s.dials++
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	go c.serve()
	return c.client
}

// Serve accepts connections on l and serves them until Accept
// fails.
func (s *Server) Serve(l net.Listener) error {
	backoff := retry.Exponential(5 * time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if util.IsTempErr(err) {
				try++
				level.Debug(s.logger()).Log("msg", "accept error", "err", err, "retry", backoff(try))
				time.Sleep(backoff(try))
				continue
			}
			return err
		}
		try = 0
		c := newConn(s, rwc)
		s.mu.Lock()
		s.dials++
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		go c.serve()
	}
}

func (s *Server) last() *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

// Abort aborts the most recent connection made with Pipe or Dial.
// The client sees ECONNABORTED on its next read or write.
func (s *Server) Abort() {
	if c := s.last(); c != nil && c.client != nil {
		c.client.Abort()
	}
}

// Send writes an unsolicited message on the most recent connection.
func (s *Server) Send(tag uint16, m altidproto.Msg) error {
	c := s.last()
	if c == nil {
		return errNoFid
	}
	return c.write(tag, m)
}

// Close closes every connection to the server.
func (s *Server) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.rwc.Close()
	}
	return nil
}

func (s *Server) logger() log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewNopLogger()
}

// A ClientConn is the client end of a connection to a Server.
type ClientConn struct {
	net.Conn
	peer    net.Conn
	aborted atomic.Bool
}

func (c *ClientConn) abortErr(op string) error {
	return &net.OpError{Op: op, Net: "pipe", Err: os.NewSyscallError(op, syscall.ECONNABORTED)}
}

func (c *ClientConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil && c.aborted.Load() {
		err = c.abortErr("read")
	}
	return n, err
}

func (c *ClientConn) Write(p []byte) (int, error) {
	if c.aborted.Load() {
		return 0, c.abortErr("write")
	}
	n, err := c.Conn.Write(p)
	if err != nil && c.aborted.Load() {
		err = c.abortErr("write")
	}
	return n, err
}

// Abort breaks the connection as if the server had aborted it.
func (c *ClientConn) Abort() {
	c.aborted.Store(true)
	c.peer.Close()
}

// Raw is a complete, pre-encoded 9P frame. When returned from an
// Intercept function or passed to Send, it is written verbatim,
// which allows a Server to send malformed messages.
type Raw []byte

// Type returns the frame's type field.
func (r Raw) Type() uint8 {
	if len(r) < altidproto.HeaderSize {
		return 0
	}
	return r[4]
}

// Frame builds a Raw frame from its parts.
func Frame(mtype uint8, tag uint16, body []byte) Raw {
	size := altidproto.HeaderSize + len(body)
	b := make([]byte, 0, size)
	b = append(b, byte(size), byte(size>>8), byte(size>>16), byte(size>>24))
	b = append(b, mtype, byte(tag), byte(tag>>8))
	return append(b, body...)
}

// the server's state for a single fid
type fidState struct {
	name string
	open bool
	mode uint8
}

// A conn serves 9P requests from a single client.
type conn struct {
	srv    *Server
	rwc    net.Conn
	client *ClientConn
	log    log.Logger

	*altidproto.Decoder
	enc *altidproto.Encoder
	wmu sync.Mutex

	msize uint32
	fids  map[uint32]*fidState
}

func newConn(srv *Server, rwc net.Conn) *conn {
	return &conn{
		srv:     srv,
		rwc:     rwc,
		log:     srv.logger(),
		Decoder: altidproto.NewDecoder(rwc),
		enc:     altidproto.NewEncoder(rwc),
		msize:   srv.Msize,
		fids:    make(map[uint32]*fidState),
	}
}

func (c *conn) write(tag uint16, m altidproto.Msg) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if raw, ok := m.(Raw); ok {
		_, err := c.rwc.Write(raw)
		return err
	}
	return c.enc.Encode(tag, m)
}

func (c *conn) rerror(tag uint16, err error) {
	c.write(tag, altidproto.Rerror{Ename: err.Error()})
}

// Requests are read in one goroutine and answered in another, so
// that a client sending a request before the previous one was
// answered is detected.
func (c *conn) serve() {
	defer c.rwc.Close()

	if !c.acceptTversion() {
		return
	}
	reqs := make(chan Request, 64)
	go func() {
		defer close(reqs)
		for c.Next() {
			r := Request{Tag: c.Tag(), Msg: c.Msg()}
			c.srv.track(r)
			reqs <- r
		}
	}()
	for r := range reqs {
		if d := c.srv.getDelay(); d > 0 {
			time.Sleep(d)
		}
		reply, ok := c.handle(r)
		c.srv.untrack()
		if !ok {
			return
		}
		if reply != nil {
			if err := c.write(r.Tag, reply); err != nil {
				level.Debug(c.log).Log("msg", "write failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) track(r Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
	s.outstanding++
	if s.outstanding > s.maxOut {
		s.maxOut = s.outstanding
	}
}

func (s *Server) untrack() {
	s.mu.Lock()
	s.outstanding--
	s.mu.Unlock()
}

// This is the first thing we do on a new connection. The first
// message a client sends *must* be a Tversion message.
func (c *conn) acceptTversion() bool {
	c.Decoder.MaxSize = int64(c.msize)
	c.enc.MaxSize = int64(c.msize)

	if !c.Next() {
		return false
	}
	r := Request{Tag: c.Tag(), Msg: c.Msg()}
	c.srv.track(r)
	defer c.srv.untrack()
	level.Debug(c.log).Log("tag", r.Tag, "msg", r.Msg.Type())

	if c.srv.Intercept != nil {
		if reply, handled := c.srv.Intercept(r.Tag, r.Msg); handled {
			if reply != nil {
				c.write(r.Tag, reply)
			}
			return reply != nil
		}
	}
	tver, ok := r.Msg.(altidproto.Tversion)
	if !ok {
		c.rerror(r.Tag, errNeedVersion)
		return false
	}
	if tver.Msize < c.msize {
		c.msize = tver.Msize
		c.Decoder.MaxSize = int64(c.msize)
		c.enc.MaxSize = int64(c.msize)
	}
	version := c.srv.Version
	if version == "" {
		version = "unknown"
		if strings.HasPrefix(tver.Version, altidproto.Version) {
			version = altidproto.Version
		}
	}
	return c.write(r.Tag, altidproto.Rversion{Msize: c.msize, Version: version}) == nil
}

// handle returns the response to a request. It returns false if the
// connection should be closed.
func (c *conn) handle(r Request) (altidproto.Msg, bool) {
	level.Debug(c.log).Log("tag", r.Tag, "msg", altidproto.MsgName(r.Msg.Type()))
	if c.srv.Intercept != nil {
		if reply, handled := c.srv.Intercept(r.Tag, r.Msg); handled {
			return reply, true
		}
	}

	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	var (
		reply altidproto.Msg
		err   error
	)
	switch m := r.Msg.(type) {
	case altidproto.BadMessage:
		level.Debug(c.log).Log("msg", "bad message", "err", m.Err)
		err = m.Err
	case altidproto.Tauth:
		err = errNoAuth
	case altidproto.Tattach:
		reply, err = c.handleTattach(m)
	case altidproto.Tflush:
		reply = altidproto.Rflush{}
	case altidproto.Twalk:
		reply, err = c.handleTwalk(m)
	case altidproto.Topen:
		reply, err = c.handleTopen(m)
	case altidproto.Tcreate:
		reply, err = c.handleTcreate(m)
	case altidproto.Tread:
		reply, err = c.handleTread(m)
	case altidproto.Twrite:
		reply, err = c.handleTwrite(m)
	case altidproto.Tclunk:
		if _, err = c.fid(m.Fid); err == nil {
			delete(c.fids, m.Fid)
			reply = altidproto.Rclunk{}
		}
	case altidproto.Tremove:
		reply, err = c.handleTremove(m)
	case altidproto.Tstat:
		reply, err = c.handleTstat(m)
	case altidproto.Twstat:
		reply, err = c.handleTwstat(m)
	default:
		err = errors.New("unexpected " + altidproto.MsgName(m.Type()))
	}
	if err != nil {
		return altidproto.Rerror{Ename: err.Error()}, true
	}
	return reply, true
}

func (c *conn) fid(fid uint32) (*fidState, error) {
	f, ok := c.fids[fid]
	if !ok {
		return nil, errNoFid
	}
	return f, nil
}

func (c *conn) qid(e *filetree.Entry) altidproto.Qid {
	qtype := altidproto.QTFILE
	if e.Dir {
		qtype = altidproto.QTDIR
	}
	return c.srv.qids.LoadOrStore(e.FullName, qtype)
}

func (c *conn) entry(f *fidState) (*filetree.Entry, error) {
	e, ok := c.srv.files.Get(f.name)
	if !ok {
		return nil, filetree.ErrNotExist
	}
	return e, nil
}

func (c *conn) stat(e *filetree.Entry) altidproto.Stat {
	st := altidproto.Stat{
		Qid:    c.qid(e),
		Mode:   0644,
		Atime:  uint32(e.Mtime.Unix()),
		Mtime:  uint32(e.Mtime.Unix()),
		Length: uint64(len(e.Data)),
		Name:   e.Name(),
		Uid:    "altid",
		Gid:    "altid",
		Muid:   "altid",
	}
	if e.Dir {
		st.Mode = altidproto.DMDIR | 0755
		st.Length = 0
	}
	return st
}

func (c *conn) handleTattach(m altidproto.Tattach) (altidproto.Msg, error) {
	if _, ok := c.fids[m.Fid]; ok {
		return nil, errFidInUse
	}
	root, _ := c.srv.files.Get("/")
	c.fids[m.Fid] = &fidState{name: "/"}
	return altidproto.Rattach{Qid: c.qid(root)}, nil
}

func (c *conn) handleTwalk(m altidproto.Twalk) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	if f.open {
		return nil, errIsOpen
	}
	if _, ok := c.fids[m.Newfid]; ok && m.Newfid != m.Fid {
		return nil, errFidInUse
	}
	name := f.name
	wqid := make([]altidproto.Qid, 0, len(m.Wname))
	for _, elem := range m.Wname {
		next := path.Join(name, elem)
		e, ok := c.srv.files.Get(next)
		if !ok {
			break
		}
		wqid = append(wqid, c.qid(e))
		name = next
	}
	if len(m.Wname) > 0 && len(wqid) == 0 {
		return nil, filetree.ErrNotExist
	}
	if len(wqid) == len(m.Wname) {
		c.fids[m.Newfid] = &fidState{name: name}
	}
	return altidproto.Rwalk{Wqid: wqid}, nil
}

func (c *conn) handleTopen(m altidproto.Topen) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	if f.open {
		return nil, errIsOpen
	}
	e, err := c.entry(f)
	if err != nil {
		return nil, err
	}
	if e.Dir && m.Mode&3 != altidproto.OREAD {
		return nil, errIsDir
	}
	if !e.Dir && m.Mode&altidproto.OTRUNC != 0 {
		e.Data = nil
		c.srv.qids.Bump(e.FullName)
	}
	f.open, f.mode = true, m.Mode
	return altidproto.Ropen{Qid: c.qid(e)}, nil
}

func (c *conn) handleTcreate(m altidproto.Tcreate) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	if f.open {
		return nil, errIsOpen
	}
	e, err := c.srv.files.Create(f.name, m.Name, m.Perm&altidproto.DMDIR != 0)
	if err != nil {
		return nil, err
	}
	f.name, f.open, f.mode = e.FullName, true, m.Mode
	return altidproto.Rcreate{Qid: c.qid(e)}, nil
}

func (c *conn) handleTread(m altidproto.Tread) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	if !f.open {
		return nil, errNotOpen
	}
	e, err := c.entry(f)
	if err != nil {
		return nil, err
	}
	if max := c.msize - altidproto.IOHeaderSize; m.Count > max {
		m.Count = max
	}
	if e.Dir {
		return altidproto.Rread{Data: c.readDir(e, m.Offset, m.Count)}, nil
	}
	if m.Offset >= uint64(len(e.Data)) {
		return altidproto.Rread{}, nil
	}
	data := e.Data[m.Offset:]
	if uint64(len(data)) > uint64(m.Count) {
		data = data[:m.Count]
	}
	return altidproto.Rread{Data: append([]byte(nil), data...)}, nil
}

// Directory reads return whole stat entries only.
func (c *conn) readDir(dir *filetree.Entry, offset uint64, count uint32) []byte {
	var all []byte
	for _, kid := range c.srv.files.Children(dir.FullName) {
		all = append(all, altidproto.MarshalStat(c.stat(kid))...)
	}
	if offset >= uint64(len(all)) {
		return nil
	}
	all = all[offset:]
	n := 0
	for n < len(all) {
		size := 2 + (int(all[n]) | int(all[n+1])<<8)
		if n+size > int(count) {
			break
		}
		n += size
	}
	return all[:n]
}

func (c *conn) handleTwrite(m altidproto.Twrite) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	if !f.open || f.mode&3 == altidproto.OREAD {
		return nil, errNotOpen
	}
	e, err := c.entry(f)
	if err != nil {
		return nil, err
	}
	if e.Dir {
		return nil, errIsDir
	}
	end := m.Offset + uint64(len(m.Data))
	if end > uint64(len(e.Data)) {
		grown := make([]byte, end)
		copy(grown, e.Data)
		e.Data = grown
	}
	copy(e.Data[m.Offset:], m.Data)
	e.Mtime = time.Now()
	c.srv.qids.Bump(e.FullName)
	return altidproto.Rwrite{Count: uint32(len(m.Data))}, nil
}

// The fid is clunked even if the remove fails.
func (c *conn) handleTremove(m altidproto.Tremove) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	delete(c.fids, m.Fid)
	if err := c.srv.files.Remove(f.name); err != nil {
		return nil, err
	}
	c.srv.qids.Del(f.name)
	return altidproto.Rremove{}, nil
}

func (c *conn) handleTstat(m altidproto.Tstat) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	e, err := c.entry(f)
	if err != nil {
		return nil, err
	}
	return altidproto.Rstat{Stat: c.stat(e)}, nil
}

// Only renames and truncation are supported.
func (c *conn) handleTwstat(m altidproto.Twstat) (altidproto.Msg, error) {
	f, err := c.fid(m.Fid)
	if err != nil {
		return nil, err
	}
	e, err := c.entry(f)
	if err != nil {
		return nil, err
	}
	if m.Stat.Length != ^uint64(0) && !e.Dir {
		if m.Stat.Length > uint64(len(e.Data)) {
			grown := make([]byte, m.Stat.Length)
			copy(grown, e.Data)
			e.Data = grown
		} else {
			e.Data = e.Data[:m.Stat.Length]
		}
		c.srv.qids.Bump(e.FullName)
	}
	if m.Stat.Name != "" && m.Stat.Name != e.Name() {
		old := e.FullName
		qid := c.qid(e)
		if _, err := c.srv.files.Rename(old, m.Stat.Name); err != nil {
			return nil, err
		}
		c.srv.qids.Del(old)
		c.srv.qids.LoadOrStore(e.FullName, qid.Type)
		for _, other := range c.fids {
			if other.name == old {
				other.name = e.FullName
			}
		}
	}
	return altidproto.Rwstat{}, nil
}
