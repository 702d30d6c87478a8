package altidproto

import "fmt"

// Message type selectors, as defined in intro(5) of the Plan 9
// manual. There is no Terror message.
const (
	MsgTversion uint8 = 100 + iota
	MsgRversion
	MsgTauth
	MsgRauth
	MsgTattach
	MsgRattach
	msgTerror
	MsgRerror
	MsgTflush
	MsgRflush
	MsgTwalk
	MsgRwalk
	MsgTopen
	MsgRopen
	MsgTcreate
	MsgRcreate
	MsgTread
	MsgRread
	MsgTwrite
	MsgRwrite
	MsgTclunk
	MsgRclunk
	MsgTremove
	MsgRremove
	MsgTstat
	MsgRstat
	MsgTwstat
	MsgRwstat
	msgMax
)

var msgNames = [...]string{
	MsgTversion: "Tversion",
	MsgRversion: "Rversion",
	MsgTauth:    "Tauth",
	MsgRauth:    "Rauth",
	MsgTattach:  "Tattach",
	MsgRattach:  "Rattach",
	MsgRerror:   "Rerror",
	MsgTflush:   "Tflush",
	MsgRflush:   "Rflush",
	MsgTwalk:    "Twalk",
	MsgRwalk:    "Rwalk",
	MsgTopen:    "Topen",
	MsgRopen:    "Ropen",
	MsgTcreate:  "Tcreate",
	MsgRcreate:  "Rcreate",
	MsgTread:    "Tread",
	MsgRread:    "Rread",
	MsgTwrite:   "Twrite",
	MsgRwrite:   "Rwrite",
	MsgTclunk:   "Tclunk",
	MsgRclunk:   "Rclunk",
	MsgTremove:  "Tremove",
	MsgRremove:  "Rremove",
	MsgTstat:    "Tstat",
	MsgRstat:    "Rstat",
	MsgTwstat:   "Twstat",
	MsgRwstat:   "Rwstat",
}

// MsgName returns the name of a message type, such as "Twalk". Unknown
// types are formatted as "msg(n)".
func MsgName(t uint8) string {
	if int(t) < len(msgNames) && msgNames[t] != "" {
		return msgNames[t]
	}
	return fmt.Sprintf("msg(%d)", t)
}

// KnownType returns true if t is one of the message types defined
// by 9P2000.
func KnownType(t uint8) bool {
	return t >= MsgTversion && t < msgMax && t != msgTerror
}

// IsRequest returns true if t is a T-message type.
func IsRequest(t uint8) bool {
	return KnownType(t) && t%2 == 0
}

// A Msg is a 9P message. 9P messages are sent by clients (T-messages)
// and servers (R-messages). The tag of a message travels beside it,
// not inside it.
type Msg interface {
	// Type returns the message type selector, such as MsgTwalk.
	Type() uint8
}

// The Tversion request negotiates the protocol version and message
// size to be used on the connection and initializes the connection
// for I/O. Tversion must be the first message sent on the 9P
// connection, and the client cannot issue any further requests
// until it has received the Rversion reply.
type Tversion struct {
	Msize   uint32
	Version string
}

// An Rversion reply is sent in response to a Tversion request.
// It contains the version of the protocol that the server has
// chosen, and the maximum size of all successive messages.
type Rversion struct {
	Msize   uint32
	Version string
}

// The Tauth message is used to authenticate users on a connection.
type Tauth struct {
	Afid         uint32
	Uname, Aname string
}

// Servers that require authentication will reply to Tauth requests
// with an Rauth message.
type Rauth struct {
	Aqid Qid
}

// The Tattach message serves as a fresh introduction from a user on
// the client machine to the server.
type Tattach struct {
	Fid, Afid    uint32
	Uname, Aname string
}

// Rattach is sent in response to a Tattach request. Its qid
// identifies the root of the file tree.
type Rattach struct {
	Qid Qid
}

// The Rerror message (there is no Terror) is used to return an error
// string describing the failure of a transaction.
type Rerror struct {
	Ename string
}

// When the response to a request is no longer needed, such as when
// a user interrupts a process doing a read(2), a Tflush request is
// sent to the server to purge the pending response.
type Tflush struct {
	Oldtag uint16
}

// A server should answer a Tflush message immediately with an Rflush
// message that echoes the tag (not oldtag) of the Tflush message.
type Rflush struct{}

// A Twalk message is used to descend a directory hierarchy. Newfid
// is associated with the file reached by walking Wname in turn,
// starting at Fid.
type Twalk struct {
	Fid, Newfid uint32
	Wname       []string
}

// An Rwalk message carries one qid for each path element that was
// walked successfully.
type Rwalk struct {
	Wqid []Qid
}

// The open request asks the file server to check permissions and
// prepare a fid for I/O with subsequent read and write messages.
type Topen struct {
	Fid  uint32
	Mode uint8
}

// An Ropen message contains the qid of the opened file and the
// iounit, the maximum number of bytes guaranteed to be read or
// written to the file without breaking the I/O transfer into
// multiple 9P messages.
type Ropen struct {
	Qid    Qid
	Iounit uint32
}

// The Tcreate request asks the file server to create a new file with
// the name supplied, in the directory represented by Fid, and
// requires write permission in the directory.
type Tcreate struct {
	Fid  uint32
	Name string
	Perm uint32
	Mode uint8
}

// Rcreate is sent in response to a successful Tcreate request.
type Rcreate struct {
	Qid    Qid
	Iounit uint32
}

// The Tread request asks for Count bytes of data from the file
// identified by Fid, starting Offset bytes after the beginning of
// the file.
type Tread struct {
	Fid    uint32
	Offset uint64
	Count  uint32
}

// The Rread message returns the bytes requested by a Tread message.
type Rread struct {
	Data []byte
}

// The Twrite message asks that Data be recorded in the file
// identified by Fid, starting Offset bytes after the beginning of
// the file.
type Twrite struct {
	Fid    uint32
	Offset uint64
	Data   []byte
}

// Rwrite reports the number of bytes recorded by a Twrite request.
type Rwrite struct {
	Count uint32
}

// The Tclunk request informs the file server that the current file
// represented by Fid is no longer needed by the client.
type Tclunk struct {
	Fid uint32
}

// Rclunk is sent in response to a Tclunk request. The fid is
// released whether or not the clunk succeeded.
type Rclunk struct{}

// The Tremove request asks the file server both to remove the file
// represented by Fid and to clunk the fid, even if the remove fails.
type Tremove struct {
	Fid uint32
}

// Rremove is sent in response to a successful Tremove request.
type Rremove struct{}

// The Tstat transaction inquires about the file identified by Fid.
type Tstat struct {
	Fid uint32
}

// The Rstat message carries the directory entry of a file.
type Rstat struct {
	Stat Stat
}

// The Twstat transaction changes some of the file status
// information described by Stat.
type Twstat struct {
	Fid  uint32
	Stat Stat
}

// Rwstat is sent in response to a successful Twstat request.
type Rwstat struct{}

func (Tversion) Type() uint8 { return MsgTversion }
func (Rversion) Type() uint8 { return MsgRversion }
func (Tauth) Type() uint8    { return MsgTauth }
func (Rauth) Type() uint8    { return MsgRauth }
func (Tattach) Type() uint8  { return MsgTattach }
func (Rattach) Type() uint8  { return MsgRattach }
func (Rerror) Type() uint8   { return MsgRerror }
func (Tflush) Type() uint8   { return MsgTflush }
func (Rflush) Type() uint8   { return MsgRflush }
func (Twalk) Type() uint8    { return MsgTwalk }
func (Rwalk) Type() uint8    { return MsgRwalk }
func (Topen) Type() uint8    { return MsgTopen }
func (Ropen) Type() uint8    { return MsgRopen }
func (Tcreate) Type() uint8  { return MsgTcreate }
func (Rcreate) Type() uint8  { return MsgRcreate }
func (Tread) Type() uint8    { return MsgTread }
func (Rread) Type() uint8    { return MsgRread }
func (Twrite) Type() uint8   { return MsgTwrite }
func (Rwrite) Type() uint8   { return MsgRwrite }
func (Tclunk) Type() uint8   { return MsgTclunk }
func (Rclunk) Type() uint8   { return MsgRclunk }
func (Tremove) Type() uint8  { return MsgTremove }
func (Rremove) Type() uint8  { return MsgRremove }
func (Tstat) Type() uint8    { return MsgTstat }
func (Rstat) Type() uint8    { return MsgRstat }
func (Twstat) Type() uint8   { return MsgTwstat }
func (Rwstat) Type() uint8   { return MsgRwstat }

func (m Tversion) String() string {
	return fmt.Sprintf("Tversion msize=%d version=%q", m.Msize, m.Version)
}
func (m Rversion) String() string {
	return fmt.Sprintf("Rversion msize=%d version=%q", m.Msize, m.Version)
}
func (m Tattach) String() string {
	return fmt.Sprintf("Tattach fid=%d afid=%d uname=%q aname=%q", m.Fid, m.Afid, m.Uname, m.Aname)
}
func (m Rerror) String() string { return fmt.Sprintf("Rerror ename=%q", m.Ename) }
func (m Twalk) String() string {
	return fmt.Sprintf("Twalk fid=%d newfid=%d wname=%q", m.Fid, m.Newfid, m.Wname)
}
func (m Tread) String() string {
	return fmt.Sprintf("Tread fid=%d offset=%d count=%d", m.Fid, m.Offset, m.Count)
}
func (m Rread) String() string { return fmt.Sprintf("Rread count=%d", len(m.Data)) }
func (m Twrite) String() string {
	return fmt.Sprintf("Twrite fid=%d offset=%d count=%d", m.Fid, m.Offset, len(m.Data))
}

// A BadMessage is a complete frame that could not be decoded.
// The Decoder has already consumed all of its bytes, so the
// stream remains usable.
type BadMessage struct {
	MsgType uint8
	Tag     uint16
	Err     error
}

// Type returns the type selector found in the frame header.
func (m BadMessage) Type() uint8 { return m.MsgType }

func (m BadMessage) String() string {
	return fmt.Sprintf("bad %s tag=%d: %v", MsgName(m.MsgType), m.Tag, m.Err)
}
