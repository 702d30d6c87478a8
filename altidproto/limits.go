package altidproto

// Version is the protocol version string proposed during the
// Tversion/Rversion handshake.
const Version = "9P2000"

// DefaultMaxSize is the default maximum size of a 9P message, and the
// msize proposed in Tversion unless configured otherwise.
const DefaultMaxSize = 8192

// HeaderSize is the length of the fields common to every 9P message:
//
// 	size[4] type[1] tag[2]
const HeaderSize = 4 + 1 + 2

// IOHeaderSize is the length of all fixed-width fields in a Twrite or Tread
// message. Twrite and Tread messages are defined as
//
// 	size[4] Twrite tag[2] fid[4] offset[8] count[4] data[count]
// 	size[4] Tread  tag[2] fid[4] offset[8] count[4]
//
const IOHeaderSize = 4 + 1 + 2 + 4 + 8 + 4

// NoTag is the tag used by Tversion and Rversion messages.
const NoTag uint16 = ^uint16(0)

// NoFid is a fid value that never names a file.
const NoFid uint32 = ^uint32(0)

// NoAuth is the afid sent in Tattach when no authentication
// has taken place.
const NoAuth uint32 = 0xFFFF

// MaxWElem is the maximum allowed number of path elements in a Twalk
// request
const MaxWElem = 16

// QidLen is the length of an encoded Qid.
const QidLen = 13

// See stat(5) or stat(9P) for details on stat structure
const statFixedSize = 2 + 2 + 4 + QidLen + 4 + 4 + 4 + 8

// Four empty NUL-terminated strings follow the fixed fields.
const minStatLen = statFixedSize + 4

// Minimum size of a message body, not counting the header.
var minSizeLUT = [...]int{
	MsgTversion: 6,                 // msize[4] version[s]
	MsgRversion: 6,                 // msize[4] version[s]
	MsgTauth:    8,                 // afid[4] uname[s] aname[s]
	MsgRauth:    QidLen,            // aqid[13]
	MsgTattach:  12,                // fid[4] afid[4] uname[s] aname[s]
	MsgRattach:  QidLen,            // qid[13]
	MsgRerror:   2,                 // ename[s]
	MsgTflush:   2,                 // oldtag[2]
	MsgRflush:   0,                 // (empty)
	MsgTwalk:    10,                // fid[4] newfid[4] nwname[2] nwname*(wname[s])
	MsgRwalk:    2,                 // nwqid[2] nwqid*(wqid[13])
	MsgTopen:    5,                 // fid[4] mode[1]
	MsgRopen:    QidLen + 4,        // qid[13] iounit[4]
	MsgTcreate:  11,                // fid[4] name[s] perm[4] mode[1]
	MsgRcreate:  QidLen + 4,        // qid[13] iounit[4]
	MsgTread:    16,                // fid[4] offset[8] count[4]
	MsgRread:    4,                 // count[4] data[count]
	MsgTwrite:   16,                // fid[4] offset[8] count[4] data[count]
	MsgRwrite:   4,                 // count[4]
	MsgTclunk:   4,                 // fid[4]
	MsgRclunk:   0,                 // (empty)
	MsgTremove:  4,                 // fid[4]
	MsgRremove:  0,                 // (empty)
	MsgTstat:    4,                 // fid[4]
	MsgRstat:    statFixedSize,     // stat[n]
	MsgTwstat:   4 + statFixedSize, // fid[4] stat[n]
	MsgRwstat:   0,                 // (empty)
}

// MinBodySize returns the smallest body, in bytes, that a message of
// type t can have. It returns -1 for unknown types.
func MinBodySize(t uint8) int {
	if !KnownType(t) {
		return -1
	}
	return minSizeLUT[t]
}
