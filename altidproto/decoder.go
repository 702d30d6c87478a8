package altidproto

import (
	"io"
)

// NewDecoder returns a Decoder that reads frames from r and accepts
// frames of any size.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, MaxSize: -1}
}

// A Decoder provides an interface for reading a stream of 9P
// messages from an io.Reader. Successive calls to the Next
// method of a Decoder will fetch and decode 9P messages
// from the input stream, until EOF is encountered, or another
// error is encountered.
//
// A Decoder reads exactly one frame per call to Next and never
// consumes bytes belonging to the next frame, regardless of how the
// underlying reader splits the stream.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxSize is the maximum size message that a Decoder will accept. If
	// MaxSize is -1, a Decoder will accept any size message. Larger
	// frames are skipped and reported as a BadMessage.
	MaxSize int64

	r   io.Reader
	hdr [HeaderSize]byte
	msg Msg
	tag uint16
	err error
}

// Reset resets a Decoder with a new io.Reader.
func (d *Decoder) Reset(r io.Reader) {
	d.MaxSize = -1
	d.r = r
	d.msg = nil
	d.tag = 0
	d.err = nil
}

// Err returns the first error encountered while reading the stream.
// If the underyling io.Reader was closed in the middle of a message,
// Err will return io.ErrUnexpectedEOF. Otherwise, io.EOF is not
// considered to be an error, and is not relayed by Err.
//
// Invalid messages are not considered errors, and are represented
// by values of type BadMessage.
func (d *Decoder) Err() error {
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

// Msg returns the last 9P message decoded in the stream. It returns
// a non-nil message if and only if the last call to the Decoder's
// Next method returned true. Messages do not share memory with the
// Decoder and remain valid after later calls to Next.
func (d *Decoder) Msg() Msg {
	return d.msg
}

// Tag returns the tag of the last message decoded.
func (d *Decoder) Tag() uint16 {
	return d.tag
}

// Next fetches the next 9P message from the Decoder's underlying
// io.Reader. If an error is encountered reading from the underlying
// stream, Next will return false, and the Decoder's Err method will return
// the first error encountered.
func (d *Decoder) Next() bool {
	d.msg = nil
	if d.err != nil {
		return false
	}
	d.msg, d.err = d.fetchMessage()
	return d.msg != nil
}

func (d *Decoder) fetchMessage() (Msg, error) {
	if _, err := io.ReadFull(d.r, d.hdr[:]); err != nil {
		return nil, err
	}
	size := int64(guint32(d.hdr[:4]))
	mtype := d.hdr[4]
	d.tag = guint16(d.hdr[5:7])

	// Without a plausible size there is no way to find the
	// next frame boundary.
	if size < HeaderSize {
		return nil, errTooSmall
	}
	n := size - HeaderSize

	if d.MaxSize >= 0 && size > d.MaxSize {
		return d.skip(mtype, n, ErrMaxSize)
	}
	if !KnownType(mtype) {
		return d.skip(mtype, n, ErrUnknownOperation)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, noEOF(err)
	}
	m, err := Unmarshal(mtype, d.tag, body)
	if err != nil {
		return BadMessage{MsgType: mtype, Tag: d.tag, Err: err}, nil
	}
	return m, nil
}

// skip discards the body of the current frame.
func (d *Decoder) skip(mtype uint8, n int64, reason error) (Msg, error) {
	if _, err := io.CopyN(io.Discard, d.r, n); err != nil {
		return nil, noEOF(err)
	}
	err := &DecodeError{Type: mtype, Tag: d.tag, Err: reason}
	return BadMessage{MsgType: mtype, Tag: d.tag, Err: err}, nil
}

// The header has been read, so running out of input is
// always unexpected.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
