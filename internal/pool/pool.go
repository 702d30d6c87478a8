// Package pool manages the fid and tag spaces of a 9P connection.
package pool

// DefaultPoolMax is the default maximum for the
// zero value of a Pool.
const DefaultPoolMax = ^uint32(0)

// New creates a new Pool. Numbers returned
// by the Get method on the returned Pool will
// not exceed max - 1.
func New(max uint32) *Pool {
	return &Pool{max: max}
}

// A Pool hands out the lowest identifier that is not currently
// live. The zero value of a Pool is an empty pool that will provide
// identifiers in the range [0, DefaultPoolMax). A Pool is not safe
// for concurrent use; it belongs to a connection's event loop.
type Pool struct {
	max  uint32
	live map[uint32]struct{}
}

// Get retrieves a free identifier from a pool. If the pool is full,
// the second return value of Get will be false. Once an identifier
// is no longer needed, it must be released using the Free method.
func (p *Pool) Get() (id uint32, notfull bool) {
	if p.max == 0 {
		p.max = DefaultPoolMax
	}
	if p.live == nil {
		p.live = make(map[uint32]struct{})
	}
	for id = 0; id < p.max; id++ {
		if _, ok := p.live[id]; !ok {
			p.live[id] = struct{}{}
			return id, true
		}
	}
	return 0, false
}

// Free releases old. It is safe to call Free more than once, or
// with an identifier that was never handed out.
func (p *Pool) Free(old uint32) {
	delete(p.live, old)
}

// Live returns true if id has been handed out by Get and not
// yet freed.
func (p *Pool) Live(id uint32) bool {
	_, ok := p.live[id]
	return ok
}

// Len returns the number of live identifiers.
func (p *Pool) Len() int {
	return len(p.live)
}

// Reset frees every identifier in the pool.
func (p *Pool) Reset() {
	p.live = nil
}
