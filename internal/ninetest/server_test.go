package ninetest

import (
	"context"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"aqwari.net/net/altid/altidproto"
)

type client struct {
	t   *testing.T
	enc *altidproto.Encoder
	dec *altidproto.Decoder
}

func (c *client) rpc(tag uint16, m altidproto.Msg) altidproto.Msg {
	c.t.Helper()
	require.NoError(c.t, c.enc.Encode(tag, m))
	require.True(c.t, c.dec.Next(), "no response to %s: %v", altidproto.MsgName(m.Type()), c.dec.Err())
	require.Equal(c.t, tag, c.dec.Tag())
	return c.dec.Msg()
}

func dial(t *testing.T, srv *Server) *client {
	rwc := srv.Pipe()
	t.Cleanup(func() { rwc.Close() })
	c := &client{t: t, enc: altidproto.NewEncoder(rwc), dec: altidproto.NewDecoder(rwc)}
	rv := c.rpc(altidproto.NoTag, altidproto.Tversion{Msize: 4096, Version: "9P2000"})
	require.Equal(t, altidproto.Rversion{Msize: 4096, Version: "9P2000"}, rv)
	_, ok := c.rpc(1, altidproto.Tattach{Fid: 0, Afid: altidproto.NoFid, Uname: "guest", Aname: "/"}).(altidproto.Rattach)
	require.True(t, ok)
	return c
}

func TestReadWrite(t *testing.T) {
	srv := New()
	srv.Put("/irc/#altid/feed", []byte("hello, world"))
	c := dial(t, srv)

	rw := c.rpc(2, altidproto.Twalk{Fid: 0, Newfid: 1, Wname: []string{"irc", "#altid", "feed"}}).(altidproto.Rwalk)
	require.Len(t, rw.Wqid, 3)
	require.Equal(t, altidproto.QTDIR, rw.Wqid[0].Type)

	_, ok := c.rpc(3, altidproto.Topen{Fid: 1, Mode: altidproto.ORDWR}).(altidproto.Ropen)
	require.True(t, ok)

	rr := c.rpc(4, altidproto.Tread{Fid: 1, Offset: 7, Count: 100}).(altidproto.Rread)
	require.Equal(t, "world", string(rr.Data))

	rwr := c.rpc(5, altidproto.Twrite{Fid: 1, Offset: 12, Data: []byte("!")}).(altidproto.Rwrite)
	require.EqualValues(t, 1, rwr.Count)

	data, _ := srv.Get("/irc/#altid/feed")
	require.Equal(t, "hello, world!", string(data))

	require.Equal(t, altidproto.Rclunk{}, c.rpc(6, altidproto.Tclunk{Fid: 1}))
	_, ok = c.rpc(7, altidproto.Tclunk{Fid: 1}).(altidproto.Rerror)
	require.True(t, ok, "double clunk should fail")

	require.Equal(t, 8, srv.Count(altidproto.MsgTversion)+srv.Count(altidproto.MsgTattach)+
		srv.Count(altidproto.MsgTwalk)+srv.Count(altidproto.MsgTopen)+srv.Count(altidproto.MsgTread)+
		srv.Count(altidproto.MsgTwrite)+srv.Count(altidproto.MsgTclunk))
	require.Equal(t, 1, srv.MaxOutstanding())
}

func TestPartialWalk(t *testing.T) {
	srv := New()
	srv.Put("/a/b", nil)
	c := dial(t, srv)

	rw := c.rpc(2, altidproto.Twalk{Fid: 0, Newfid: 1, Wname: []string{"a", "nope"}}).(altidproto.Rwalk)
	require.Len(t, rw.Wqid, 1)

	// newfid was not established by the partial walk
	_, ok := c.rpc(3, altidproto.Tstat{Fid: 1}).(altidproto.Rerror)
	require.True(t, ok)

	_, ok = c.rpc(4, altidproto.Twalk{Fid: 0, Newfid: 1, Wname: []string{"nope"}}).(altidproto.Rerror)
	require.True(t, ok)
}

func TestDirectoryRead(t *testing.T) {
	srv := New()
	srv.Put("/svc/one", []byte("1"))
	srv.Put("/svc/two", []byte("22"))
	c := dial(t, srv)

	c.rpc(2, altidproto.Twalk{Fid: 0, Newfid: 1, Wname: []string{"svc"}})
	c.rpc(3, altidproto.Topen{Fid: 1, Mode: altidproto.OREAD})
	rr := c.rpc(4, altidproto.Tread{Fid: 1, Count: 4000}).(altidproto.Rread)

	var names []string
	for b := rr.Data; len(b) > 0; {
		n := 2 + (int(b[0]) | int(b[1])<<8)
		st, err := altidproto.UnmarshalStat(b[:n])
		require.NoError(t, err)
		names = append(names, st.Name)
		b = b[n:]
	}
	require.Equal(t, []string{"one", "two"}, names)
}

func TestCreateRemove(t *testing.T) {
	srv := New()
	c := dial(t, srv)

	c.rpc(2, altidproto.Twalk{Fid: 0, Newfid: 1})
	rc, ok := c.rpc(3, altidproto.Tcreate{Fid: 1, Name: "notes", Perm: 0644, Mode: altidproto.OWRITE}).(altidproto.Rcreate)
	require.True(t, ok)
	require.Equal(t, altidproto.QTFILE, rc.Qid.Type)
	c.rpc(4, altidproto.Twrite{Fid: 1, Data: []byte("x")})

	require.Equal(t, altidproto.Rremove{}, c.rpc(5, altidproto.Tremove{Fid: 1}))
	_, exists := srv.Get("/notes")
	require.False(t, exists)
}

func TestAuthAndFlush(t *testing.T) {
	srv := New()
	c := dial(t, srv)

	_, ok := c.rpc(2, altidproto.Tauth{Afid: 5, Uname: "guest"}).(altidproto.Rerror)
	require.True(t, ok)
	require.Equal(t, altidproto.Rflush{}, c.rpc(3, altidproto.Tflush{Oldtag: 2}))
}

func TestAbort(t *testing.T) {
	srv := New()
	cc := srv.Pipe()
	srv.Abort()

	_, err := cc.Read(make([]byte, 10))
	require.Error(t, err)
	require.ErrorIs(t, err, syscall.ECONNABORTED)

	srv.RefuseDials(true)
	_, err = srv.Dial(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, 1, srv.Dials())
}
