package altidproto

import (
	"bytes"
	"fmt"
	"math"
)

// The Stat structure describes a directory entry. It is contained in
// Rstat and Twstat messages.
//
// On the wire, a stat is
//
// 	size[2] type[2] dev[4] qid[13] mode[4] atime[4] mtime[4] length[8]
//
// followed by the name, uid, gid and muid strings, each terminated
// by a NUL byte. The size field counts the bytes that follow it.
type Stat struct {
	// The 2-byte type field contains implementation-specific data
	// that is outside the scope of the 9P protocol.
	Type uint16

	// The 4-byte dev field contains implementation-specific data
	// that is outside the scope of the 9P protocol.
	Dev uint32

	Qid Qid

	// Mode contains the permissions and flags set for the file.
	Mode uint32

	// Access and modification times, in seconds since the epoch.
	Atime, Mtime uint32

	// Length of the file in bytes.
	Length uint64

	Name, Uid, Gid, Muid string
}

// IsDir returns true if the stat describes a directory.
func (s Stat) IsDir() bool { return s.Mode&DMDIR != 0 }

func (s Stat) String() string {
	return fmt.Sprintf("type=%x dev=%x qid=%q mode=%o atime=%d mtime=%d "+
		"length=%d name=%q uid=%q gid=%q muid=%q", s.Type, s.Dev, s.Qid,
		s.Mode, s.Atime, s.Mtime, s.Length, s.Name, s.Uid, s.Gid, s.Muid)
}

func (s Stat) size() int {
	return minStatLen + len(s.Name) + len(s.Uid) + len(s.Gid) + len(s.Muid)
}

func pstat(b []byte, s Stat) []byte {
	n := s.size() - 2
	if n > math.MaxUint16 {
		panic(errLongStat)
	}
	for _, str := range [...]string{s.Name, s.Uid, s.Gid, s.Muid} {
		if bytes.IndexByte([]byte(str), 0) >= 0 {
			panic(errNulString)
		}
	}
	b = puint16(b, uint16(n))
	b = puint16(b, s.Type)
	b = puint32(b, s.Dev)
	b = pqid(b, s.Qid)
	b = puint32(b, s.Mode, s.Atime, s.Mtime)
	b = puint64(b, s.Length)
	for _, str := range [...]string{s.Name, s.Uid, s.Gid, s.Muid} {
		b = append(b, str...)
		b = append(b, 0)
	}
	return b
}

// MarshalStat returns the wire representation of s.
func MarshalStat(s Stat) []byte {
	return pstat(make([]byte, 0, s.size()), s)
}

// UnmarshalStat parses a stat structure, including its leading size
// field. Bytes beyond the declared size are ignored.
func UnmarshalStat(data []byte) (Stat, error) {
	c := cursor{buf: data}
	return c.stat()
}

func (c *cursor) stat() (Stat, error) {
	var s Stat
	size := c.uint16()
	body := cursor{buf: c.next(int(size))}
	if c.err != nil {
		return s, c.err
	}
	s.Type = body.uint16()
	s.Dev = body.uint32()
	s.Qid = body.qid()
	s.Mode = body.uint32()
	s.Atime = body.uint32()
	s.Mtime = body.uint32()
	s.Length = body.uint64()
	if body.err != nil {
		return s, body.err
	}
	names, err := splitStatNames(body.rest())
	if err != nil {
		return s, err
	}
	s.Name, s.Uid, s.Gid, s.Muid = names[0], names[1], names[2], names[3]
	return s, nil
}

// The trailing block of a stat must hold exactly four NUL-terminated
// strings.
func splitStatNames(block []byte) ([4]string, error) {
	var names [4]string
	if len(block) == 0 || block[len(block)-1] != 0 {
		return names, ErrMalformedStat
	}
	fields := bytes.Split(block[:len(block)-1], []byte{0})
	if len(fields) != len(names) {
		return names, ErrMalformedStat
	}
	for i, f := range fields {
		names[i] = string(f)
	}
	return names, nil
}
