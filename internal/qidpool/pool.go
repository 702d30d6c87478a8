// Package qidpool manages pools of 9P Qids, 13-byte unique identifiers
// for files.
package qidpool

import (
	"sync/atomic"

	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/threadsafe"
)

// A Pool maintains a pool of unique identifiers for files on a 9P
// file server. A Pool must be created with a call to New.
type Pool struct {
	m    *threadsafe.Map[string, altidproto.Qid]
	path uint64
}

// New returns a new, empty Pool.
func New() *Pool {
	return &Pool{m: threadsafe.NewMap[string, altidproto.Qid]()}
}

// LoadOrStore returns the Qid associated with name, creating a new,
// unique Qid of the given type if there is none.
func (p *Pool) LoadOrStore(name string, qtype altidproto.QidType) altidproto.Qid {
	if q, ok := p.m.Get(name); ok {
		return q
	}
	qid := altidproto.Qid{Type: qtype, Path: atomic.AddUint64(&p.path, 1)}
	p.m.Do(func(m map[string]altidproto.Qid) {
		if existing, ok := m[name]; ok {
			qid = existing
		} else {
			m[name] = qid
		}
	})
	return qid
}

// Load fetches the Qid currently associated with name from the pool.
// The Qid is only valid if the second return value is true.
func (p *Pool) Load(name string) (altidproto.Qid, bool) {
	return p.m.Get(name)
}

// Bump increments the version of the Qid associated with name, as
// a server does when a file is modified.
func (p *Pool) Bump(name string) {
	p.m.Do(func(m map[string]altidproto.Qid) {
		if q, ok := m[name]; ok {
			q.Version++
			m[name] = q
		}
	})
}

// Del removes a Qid from a Pool. Once a Qid is removed from a pool, its
// path will never be used again.
func (p *Pool) Del(name string) {
	p.m.Del(name)
}
