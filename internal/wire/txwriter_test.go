package wire

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

type failWriter struct {
	n   int
	err error
}

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, w.err
	}
	w.n--
	return len(p), nil
}

func TestTxIsolation(t *testing.T) {
	var buf bytes.Buffer
	w := &TxWriter{W: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(c byte) {
			defer wg.Done()
			tx := w.Tx()
			tx.Write([]byte{c})
			tx.Write([]byte{c})
			tx.Close()
		}(byte('a' + i%26))
	}
	wg.Wait()

	out := buf.Bytes()
	if len(out) != 100 {
		t.Fatalf("wrote %d bytes, want 100", len(out))
	}
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("interleaved transaction at byte %d: %q", i, out[i:i+2])
		}
	}
}

func TestTxStickyError(t *testing.T) {
	boom := errors.New("boom")
	w := &TxWriter{W: &failWriter{n: 1, err: boom}}

	tx := w.Tx()
	tx.Write([]byte("header"))
	tx.Write([]byte("body"))
	if err := tx.Close(); err != boom {
		t.Fatalf("Close returned %v, want %v", err, boom)
	}
	if err := tx.Close(); err != errDoubleClose {
		t.Errorf("second Close returned %v", err)
	}

	tx = w.Tx()
	if _, err := tx.Write([]byte("x")); err != boom {
		t.Errorf("write after failure returned %v, want %v", err, boom)
	}
	tx.Close()
	if w.Err() != boom {
		t.Errorf("Err() = %v", w.Err())
	}
}
