package altidproto

import (
	"errors"
	"fmt"
)

type parseError string

func (p parseError) Error() string { return string(p) }

// Decoding a message fails with one of these errors, wrapped in a
// *DecodeError.
var (
	// ErrTruncated is returned when a message body is shorter than
	// the fixed fields of its type, or than a length it declares.
	ErrTruncated error = parseError("message truncated")

	// ErrUnknownOperation is returned for a type selector that is
	// not part of 9P2000.
	ErrUnknownOperation error = parseError("unknown message type")

	// ErrMalformedStat is returned when the strings at the end of
	// a stat structure are not exactly four NUL-terminated names.
	ErrMalformedStat error = parseError("malformed stat structure")
)

var (
	errTooSmall   = parseError("frame smaller than message header")
	errLongString = errors.New("string longer than max uint16")
	errLongWalk   = errors.New("maximum walk elements exceeded")
	errNulString  = errors.New("NUL in stat string")
	errLongStat   = errors.New("stat structure too long")
)

// ErrMaxSize is returned by the Encoder when a message would exceed
// the maximum size negotiated during the Tversion/Rversion
// transaction. A Decoder reports oversized frames with the same
// error inside a BadMessage.
var ErrMaxSize = errors.New("message exceeds msize")

// A DecodeError describes a message that could not be decoded.
type DecodeError struct {
	Type uint8
	Tag  uint16
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s tag %d: %v", MsgName(e.Type), e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
