package util

import "io"

// An ErrWriter can be used to defer error checking when
// doing several successive writes to an underlying
// io.Writer.
type ErrWriter struct {
	W   io.Writer
	Err error
	N   int
}

// Write writes len(p) bytes to the underlying io.Writer of the ErrWriter
// value. If an error has already been encountered, no additional
// data is written. A short write without an error is reported as
// io.ErrShortWrite.
func (w *ErrWriter) Write(p []byte) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err := w.W.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	w.Err = err
	w.N += n
	return n, err
}
