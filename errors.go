package altid

import (
	"errors"
	"fmt"
	"io"
	"net"

	"aqwari.net/net/altid/internal/util"
)

var (
	// ErrClosed is returned for requests that were pending when a
	// connection was cancelled, and for requests submitted after.
	ErrClosed = errors.New("connection closed")

	// ErrVersionMismatch is returned when the server does not
	// speak 9P2000.
	ErrVersionMismatch = errors.New("server does not support 9P2000")

	// ErrTagMismatch describes a response whose tag does not match
	// the request in flight. Such responses are discarded.
	ErrTagMismatch = errors.New("response tag does not match request")

	// ErrUnexpectedResponse is returned when the server answers a
	// request with the wrong type of message.
	ErrUnexpectedResponse = errors.New("unexpected response type")

	// ErrTimeout is returned when a request is not answered within
	// Client.Timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrStaleHandle is returned by operations on a Handle that was
	// clunked, or that belongs to a previous connection.
	ErrStaleHandle = errors.New("stale handle")

	// ErrNotExist is returned when a walk reaches only part of the
	// requested path.
	ErrNotExist = errors.New("file does not exist")

	errNoFids      = errors.New("out of fids")
	errNoTags      = errors.New("out of tags")
	errNotAttached = errors.New("not attached")
	errSmallMsize  = errors.New("negotiated msize too small")
	errLongPath    = errors.New("too many path elements")
	errShortWrite  = errors.New("server accepted no data")
)

// A RemoteError is an error reported by the server in an Rerror
// message. The connection remains usable.
type RemoteError struct {
	Ename string
}

func (e *RemoteError) Error() string { return e.Ename }

// TransportKind classifies transport failures.
type TransportKind int

const (
	// The transport was closed, either locally or by an orderly
	// shutdown of the peer.
	TransportClosed TransportKind = iota

	// The peer aborted or reset the connection.
	TransportAborted

	// Any other I/O failure, including a stream that could not be
	// parsed.
	TransportOther
)

func (k TransportKind) String() string {
	switch k {
	case TransportClosed:
		return "closed"
	case TransportAborted:
		return "aborted"
	}
	return "error"
}

// A TransportError is returned for requests that were pending when
// the underlying transport failed.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports closed transports as ErrClosed.
func (e *TransportError) Is(target error) bool {
	return target == ErrClosed && e.Kind == TransportClosed
}

// transportError classifies err. Errors that did not come from the
// transport, such as a failed handshake, are returned unchanged.
func transportError(err error) error {
	var te *TransportError
	var re *RemoteError
	switch {
	case errors.As(err, &te), errors.As(err, &re), err == ErrClosed:
		return err
	case errors.Is(err, ErrVersionMismatch), errors.Is(err, errSmallMsize), errors.Is(err, ErrTimeout):
		return err
	case util.IsAbortErr(err):
		return &TransportError{Kind: TransportAborted, Err: err}
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return &TransportError{Kind: TransportClosed, Err: err}
	}
	return &TransportError{Kind: TransportOther, Err: err}
}

func isAborted(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportAborted
}
