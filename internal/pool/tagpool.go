package pool

// A TagPool hands out 9P message tags. Tags are issued from a
// counter that wraps around before NOTAG (0xFFFF), which is never
// returned. A tag that is still live is skipped, so a retired tag
// is only reissued after Free. The zero value is ready to use.
type TagPool struct {
	next uint16
	live map[uint16]struct{}
}

const notag = ^uint16(0)

// Get returns an unused tag. The second return value is false if
// every tag is in use.
func (p *TagPool) Get() (tag uint16, ok bool) {
	if p.live == nil {
		p.live = make(map[uint16]struct{})
	}
	if len(p.live) >= int(notag) {
		return 0, false
	}
	for {
		tag = p.next
		p.next++
		if p.next == notag {
			p.next = 0
		}
		if _, inuse := p.live[tag]; !inuse {
			p.live[tag] = struct{}{}
			return tag, true
		}
	}
}

// Free releases tag for reuse. Freeing an unused tag does nothing.
func (p *TagPool) Free(tag uint16) {
	delete(p.live, tag)
}

// Live returns true if tag is in use.
func (p *TagPool) Live(tag uint16) bool {
	_, ok := p.live[tag]
	return ok
}

// Reset frees every tag. The counter keeps its position, so tags
// from before the reset are not immediately reissued.
func (p *TagPool) Reset() {
	p.live = nil
}
