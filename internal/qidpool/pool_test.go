package qidpool

import (
	"testing"

	"aqwari.net/net/altid/altidproto"
)

func TestQidpool(t *testing.T) {
	pool := New()
	pool.LoadOrStore("/foo/bar", altidproto.QTDIR)

	var old altidproto.Qid
	if q, ok := pool.Load("/foo/bar"); !ok {
		t.Error("could not find qid")
	} else if q.Type != altidproto.QTDIR {
		t.Error("qid was not set to given type")
	} else {
		old = q
	}

	if q := pool.LoadOrStore("/foo/bar", altidproto.QTFILE); q != old {
		t.Errorf("LoadOrStore replaced %v with %v", old, q)
	}

	pool.Bump("/foo/bar")
	if q, _ := pool.Load("/foo/bar"); q.Version != old.Version+1 {
		t.Errorf("version %d after Bump, want %d", q.Version, old.Version+1)
	}

	pool.Del("/foo/bar")
	if _, ok := pool.Load("/foo/bar"); ok {
		t.Error("Del did not delete qid")
	}

	if q := pool.LoadOrStore("/foo/bar", altidproto.QTDIR); q.Path == old.Path {
		t.Errorf("qid path %d reused after Del", q.Path)
	}
}
