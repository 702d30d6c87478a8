package util

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

type tempErr struct{}

func (tempErr) Error() string   { return "try again" }
func (tempErr) Temporary() bool { return true }

func TestIsAbortErr(t *testing.T) {
	aborted := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNABORTED)}
	reset := fmt.Errorf("reading frame: %w", syscall.ECONNRESET)

	if !IsAbortErr(aborted) {
		t.Errorf("IsAbortErr(%v) = false", aborted)
	}
	if !IsAbortErr(reset) {
		t.Errorf("IsAbortErr(%v) = false", reset)
	}
	if IsAbortErr(errors.New("connection refused")) {
		t.Error("IsAbortErr returned true for unrelated error")
	}
}

func TestIsTempErr(t *testing.T) {
	if !IsTempErr(fmt.Errorf("accept: %w", tempErr{})) {
		t.Error("wrapped temporary error not detected")
	}
	if IsTempErr(errors.New("permanent")) {
		t.Error("IsTempErr returned true for plain error")
	}
}
