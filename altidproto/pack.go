package altidproto

import (
	"encoding/binary"
	"math"
)

// bit-packing functions. these functions extend their argument
// slice by the amount of data encoded, growing it if necessary.

func puint8(b []byte, v uint8) []byte {
	return append(b, v)
}

func puint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func puint32(b []byte, v ...uint32) []byte {
	for _, vv := range v {
		b = binary.LittleEndian.AppendUint32(b, vv)
	}
	return b
}

func puint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

func pbyte(b []byte, p []byte) []byte {
	if len(p) > math.MaxUint16 {
		panic(errLongString)
	}
	b = puint16(b, uint16(len(p)))
	return append(b, p...)
}

func pstring(b []byte, s ...string) []byte {
	for _, ss := range s {
		if len(ss) > math.MaxUint16 {
			panic(errLongString)
		}
		b = puint16(b, uint16(len(ss)))
		b = append(b, ss...)
	}
	return b
}

func pqid(b []byte, qid ...Qid) []byte {
	for _, q := range qid {
		b = puint8(b, uint8(q.Type))
		b = puint32(b, q.Version)
		b = puint64(b, q.Path)
	}
	return b
}

// pheader appends a message header with a zero size field; writelen
// fills it in once the body is complete.
func pheader(b []byte, mtype uint8, tag uint16) []byte {
	b = puint32(b, 0)
	b = puint8(b, mtype)
	return puint16(b, tag)
}

func writelen(b []byte) []byte {
	binary.LittleEndian.PutUint32(b[:4], uint32(len(b)))
	return b
}

// Shorthand for parsing numbers
var (
	guint16 = binary.LittleEndian.Uint16
	guint32 = binary.LittleEndian.Uint32
	guint64 = binary.LittleEndian.Uint64
)

// A cursor walks a message body. Every read is bounds-checked; the
// first short read sets err and every later read returns zero
// values, so a parse function can check for truncation once, at
// the end.
type cursor struct {
	buf []byte
	err error
}

func (c *cursor) next(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.buf) {
		c.err = ErrTruncated
		c.buf = nil
		return nil
	}
	p := c.buf[:n:n]
	c.buf = c.buf[n:]
	return p
}

func (c *cursor) uint8() uint8 {
	if p := c.next(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *cursor) uint16() uint16 {
	if p := c.next(2); p != nil {
		return guint16(p)
	}
	return 0
}

func (c *cursor) uint32() uint32 {
	if p := c.next(4); p != nil {
		return guint32(p)
	}
	return 0
}

func (c *cursor) uint64() uint64 {
	if p := c.next(8); p != nil {
		return guint64(p)
	}
	return 0
}

func (c *cursor) string() string {
	n := c.uint16()
	return string(c.next(int(n)))
}

func (c *cursor) qid() Qid {
	return Qid{
		Type:    QidType(c.uint8()),
		Version: c.uint32(),
		Path:    c.uint64(),
	}
}

func (c *cursor) rest() []byte {
	if c.err != nil {
		return nil
	}
	p := c.buf
	c.buf = nil
	return p
}
