package altid

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"aqwari.net/net/altid/altidproto"
)

// Walks always start at the attach point. A walk names at most
// altidproto.MaxWElem elements, which is deeper than any altid
// service's tree.
//
// 	Twalk root newfid "irc" "#altid" "feed"
//
// The server answers with one qid for each element it could reach.
// Only a complete answer produces a Handle; a partial walk leaves
// newfid unassigned on the server, so its fid is returned to the
// pool without a clunk. The fid of a walk that timed out stays
// reserved until the flush resolves, and is clunked if the walk
// turns out to have succeeded.

// SplitPath splits a slash-separated path into the elements of a
// walk. The root is represented by an empty slice.
func SplitPath(name string) []string {
	name = path.Clean("/" + name)
	if name == "/" {
		return nil
	}
	return strings.Split(name[1:], "/")
}

// Walk allocates a fid and walks it from the attach point to the
// file named by names. On success, cb receives a Handle that must
// eventually be clunked or removed.
func (c *Conn) Walk(names []string, cb func(*Handle, error)) {
	var h *Handle
	c.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if c.root == nil {
				return nil, errNotAttached
			}
			if len(names) > altidproto.MaxWElem {
				return nil, fmt.Errorf("%w: %d", errLongPath, len(names))
			}
			var err error
			h, err = c.handles.allocate(c, path.Join(append([]string{"/"}, names...)...))
			if err != nil {
				return nil, err
			}
			return altidproto.Twalk{Fid: c.root.Fid, Newfid: h.Fid, Wname: names}, nil
		},
		settle: func(m altidproto.Msg) {
			if rw, ok := m.(altidproto.Rwalk); ok && len(rw.Wqid) == len(names) {
				// newfid is bound on the server
				h.Clunk(func(error) {})
				return
			}
			c.handles.release(h)
		},
		cb: func(m altidproto.Msg, err error) {
			if err == nil {
				wqid := m.(altidproto.Rwalk).Wqid
				switch {
				case len(wqid) == len(names) && len(wqid) > 0:
					h.Qid = wqid[len(wqid)-1]
				case len(names) == 0:
					h.Qid = c.root.Qid
				default:
					err = fmt.Errorf("walk %s: %w", h.Name, ErrNotExist)
				}
			}
			if err != nil {
				if !errors.Is(err, ErrTimeout) {
					c.handles.release(h)
				}
				cb(nil, err)
				return
			}
			cb(h, nil)
		},
	})
}
