package altid

import (
	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/pool"
)

// A Handle is a fid on the server, bound to a file by a successful
// walk. Handles are only valid on the connection that created them,
// and only until they are clunked or the connection is reset.
type Handle struct {
	// Fid is the 9P file identifier.
	Fid uint32

	// Name is the path walked to obtain the handle, relative to
	// the attach point.
	Name string

	// Qid of the file, updated by open and create.
	Qid altidproto.Qid

	// Iounit as reported by the last open or create. Zero means
	// the server did not provide one.
	Iounit uint32

	conn *Conn
	gen  uint64
}

// The handle table tracks fids and tags in use on a connection. It
// belongs to the connection's event loop and is never touched from
// any other goroutine.
type handleTable struct {
	fids pool.Pool
	tags pool.TagPool
	live map[uint32]*Handle
	gen  uint64
}

func (t *handleTable) allocate(c *Conn, name string) (*Handle, error) {
	fid, ok := t.fids.Get()
	if !ok || fid == altidproto.NoFid {
		return nil, errNoFids
	}
	h := &Handle{Fid: fid, Name: name, conn: c, gen: t.gen}
	if t.live == nil {
		t.live = make(map[uint32]*Handle)
	}
	t.live[fid] = h
	return h, nil
}

// valid returns true if h is a live handle of the current
// generation.
func (t *handleTable) valid(h *Handle) bool {
	return h != nil && h.gen == t.gen && t.live[h.Fid] == h
}

// release returns the fid of h to the pool. Releasing a handle more
// than once, or after a reset, does nothing.
func (t *handleTable) release(h *Handle) {
	if !t.valid(h) {
		return
	}
	delete(t.live, h.Fid)
	t.fids.Free(h.Fid)
}

func (t *handleTable) tag() (uint16, error) {
	tag, ok := t.tags.Get()
	if !ok {
		return 0, errNoTags
	}
	return tag, nil
}

func (t *handleTable) freeTag(tag uint16) {
	t.tags.Free(tag)
}

// reset discards every fid and tag. Handles from before the reset
// become stale.
func (t *handleTable) reset() {
	t.fids.Reset()
	t.tags.Reset()
	t.live = nil
	t.gen++
}

func (t *handleTable) len() int {
	return len(t.live)
}
