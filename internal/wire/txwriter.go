// Package wire isolates the writes that make up one 9P frame.
package wire

import (
	"errors"
	"io"
	"sync"

	"aqwari.net/net/altid/internal/util"
)

var (
	errDoubleClose = errors.New("Close on closed TxWriter.Tx")
	errClosedWrite = errors.New("Write on closed TxWriter.Tx")
)

// A TxWriter allows for isolation of sets of writes on an io.Writer.
// A frame that was only partially written leaves the stream
// unusable, so the first error from the underlying writer is
// kept and returned by every later transaction.
type TxWriter struct {
	W io.Writer

	mu  sync.Mutex
	err error
}

// Err returns the first error encountered writing to the
// underlying writer.
func (w *TxWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// A Tx is a set of Writes that will not be interleaved with any
// other Writes to the same TxWriter.
type Tx struct {
	w  *TxWriter
	ew util.ErrWriter
}

// Tx begins a transaction. All other transactions on the TxWriter
// are blocked until the returned Tx is closed. A Tx can only be used
// from a single goroutine.
func (w *TxWriter) Tx() *Tx {
	w.mu.Lock()
	return &Tx{w: w, ew: util.ErrWriter{W: w.W, Err: w.err}}
}

// Write writes p to the underlying writer. After the first error,
// Write does nothing and returns that error.
func (tx *Tx) Write(p []byte) (int, error) {
	if tx.w == nil {
		return 0, errClosedWrite
	}
	return tx.ew.Write(p)
}

// Close ends the transaction and returns the first error
// encountered during it, if any.
func (tx *Tx) Close() error {
	if tx.w == nil {
		return errDoubleClose
	}
	w := tx.w
	tx.w = nil
	w.err = tx.ew.Err
	w.mu.Unlock()
	return tx.ew.Err
}

// N returns the number of bytes written during the transaction.
func (tx *Tx) N() int {
	return tx.ew.N
}
