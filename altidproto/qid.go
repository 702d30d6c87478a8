package altidproto

import "fmt"

// A Qid represents the server's unique identification for the file
// being accessed: two files on the same server hierarchy are the same
// if and only if their qids are the same.
type Qid struct {
	// Type of the file (directory, etc)
	Type QidType

	// Version is a version number for a file; typically, it is
	// incremented every time a file is modified.
	Version uint32

	// Path is an integer unique among all files in the hierarchy.
	Path uint64
}

func (q Qid) String() string {
	return fmt.Sprintf("type=%d ver=%d path=%x", q.Type, q.Version, q.Path)
}

// A QidType represents the type of a file (directory, etc.), represented
// as a bit vector corresponding to the high 8 bits of the file's mode
// word.
type QidType uint8

const (
	QTDIR    QidType = 0x80 // directories
	QTAPPEND QidType = 0x40 // append only files
	QTEXCL   QidType = 0x20 // exclusive use files
	QTMOUNT  QidType = 0x10 // mounted channel
	QTAUTH   QidType = 0x08 // authentication file (afid)
	QTTMP    QidType = 0x04 // non-backed-up file
	QTFILE   QidType = 0x00
)

// Open modes, used in Topen and Tcreate messages.
const (
	OREAD   uint8 = 0  // open for read
	OWRITE  uint8 = 1  // write
	ORDWR   uint8 = 2  // read and write
	OEXEC   uint8 = 3  // execute, == read but check execute permission
	OTRUNC  uint8 = 16 // or'ed in (except for exec), truncate file first
	ORCLOSE uint8 = 64 // or'ed in, remove on close
)

// Bits in Stat.Mode and Tcreate's perm field.
const (
	DMDIR    uint32 = 0x80000000 // mode bit for directories
	DMAPPEND uint32 = 0x40000000 // mode bit for append only files
	DMEXCL   uint32 = 0x20000000 // mode bit for exclusive use files
	DMMOUNT  uint32 = 0x10000000 // mode bit for mounted channel
	DMAUTH   uint32 = 0x08000000 // mode bit for authentication file
	DMTMP    uint32 = 0x04000000 // mode bit for non-backed-up files
)
