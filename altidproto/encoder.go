package altidproto

import (
	"fmt"
	"io"

	"aqwari.net/net/altid/internal/wire"
)

// An Encoder writes 9P messages to an underlying io.Writer. The
// header and body of each message are written as a single
// transaction, so an Encoder may be shared by multiple goroutines.
type Encoder struct {
	// MaxSize is the largest message the Encoder will write. If
	// MaxSize is -1, messages of any size are written. MaxSize must
	// not be changed while another goroutine is calling Encode.
	MaxSize int64

	w *wire.TxWriter
}

// NewEncoder creates a new Encoder that writes 9P messages to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: &wire.TxWriter{W: w}, MaxSize: -1}
}

// Encode writes the wire representation of m to the underlying
// io.Writer, using tag as the message tag. Once a write to the
// underlying io.Writer fails, every later call to Encode returns
// the same error.
func (enc *Encoder) Encode(tag uint16, m Msg) error {
	b, err := Marshal(tag, m)
	if err != nil {
		return err
	}
	if enc.MaxSize >= 0 && int64(len(b)) > enc.MaxSize {
		return fmt.Errorf("%s of %d bytes: %w", MsgName(m.Type()), len(b), ErrMaxSize)
	}
	tx := enc.w.Tx()
	tx.Write(b[:HeaderSize])
	tx.Write(b[HeaderSize:])
	return tx.Close()
}

// Err returns the first error encountered writing to the underlying
// io.Writer.
func (enc *Encoder) Err() error {
	return enc.w.Err()
}
