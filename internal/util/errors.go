// Package util contains small helpers shared by the altid packages.
package util

import (
	"errors"
	"syscall"
)

// IsTempErr returns true if an error exports a
// Temporary() method that returns true.
func IsTempErr(err error) bool {
	type t interface {
		Temporary() bool
	}
	var te t
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

// IsAbortErr returns true if err reports that the peer aborted or
// reset an established connection.
func IsAbortErr(err error) bool {
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}
