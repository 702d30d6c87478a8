package altidproto

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"reflect"
	"testing"
	"testing/iotest"
)

func frames(t *testing.T, msgs ...Msg) []byte {
	var buf bytes.Buffer
	for i, m := range msgs {
		b, err := Marshal(uint16(i), m)
		if err != nil {
			t.Fatal(err)
		}
		buf.Write(b)
	}
	return buf.Bytes()
}

// chunkReader returns the stream in randomly sized pieces.
type chunkReader struct {
	r   io.Reader
	rng *rand.Rand
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1+c.rng.Intn(len(p))]
	}
	return c.r.Read(p)
}

func decodeAll(t *testing.T, r io.Reader) ([]Msg, []uint16) {
	var (
		msgs []Msg
		tags []uint16
	)
	d := NewDecoder(r)
	for d.Next() {
		msgs = append(msgs, d.Msg())
		tags = append(tags, d.Tag())
	}
	if err := d.Err(); err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return msgs, tags
}

func TestDecoderChunking(t *testing.T) {
	input := frames(t, sampleMessages...)
	readers := map[string]io.Reader{
		"whole":    bytes.NewReader(input),
		"onebyte":  iotest.OneByteReader(bytes.NewReader(input)),
		"halfread": iotest.HalfReader(bytes.NewReader(input)),
		"random":   &chunkReader{r: bytes.NewReader(input), rng: rand.New(rand.NewSource(1))},
	}
	for name, r := range readers {
		msgs, tags := decodeAll(t, r)
		if len(msgs) != len(sampleMessages) {
			t.Errorf("%s: decoded %d messages, want %d", name, len(msgs), len(sampleMessages))
			continue
		}
		for i := range msgs {
			if tags[i] != uint16(i) {
				t.Errorf("%s: message %d has tag %d", name, i, tags[i])
			}
			if !reflect.DeepEqual(normalize(msgs[i]), normalize(sampleMessages[i])) {
				t.Errorf("%s: message %d: got %#v want %#v", name, i, msgs[i], sampleMessages[i])
			}
		}
	}
}

func TestDecoderSkipsUnknown(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frames(t, Rclunk{}))

	// type 200 with a 5-byte body
	bogus := pheader(nil, 200, 9)
	bogus = append(bogus, "junk!"...)
	buf.Write(writelen(bogus))

	buf.Write(frames(t, Rversion{Msize: 8192, Version: Version}))

	msgs, tags := decodeAll(t, iotest.OneByteReader(&buf))
	if len(msgs) != 3 {
		t.Fatalf("decoded %d messages, want 3", len(msgs))
	}
	bad, ok := msgs[1].(BadMessage)
	if !ok {
		t.Fatalf("second message is %T, want BadMessage", msgs[1])
	}
	if !errors.Is(bad.Err, ErrUnknownOperation) || bad.Tag != 9 || tags[1] != 9 {
		t.Errorf("unexpected bad message %v", bad)
	}
	if _, ok := msgs[2].(Rversion); !ok {
		t.Errorf("stream lost sync after unknown message; got %T", msgs[2])
	}
}

func TestDecoderBadBody(t *testing.T) {
	var buf bytes.Buffer
	stat := pheader(nil, MsgRstat, 4)
	stat = append(stat, statWithNames("a\x00b\x00c\x00")...)
	buf.Write(writelen(stat))
	buf.Write(frames(t, Rclunk{}))

	msgs, _ := decodeAll(t, &buf)
	if len(msgs) != 2 {
		t.Fatalf("decoded %d messages, want 2", len(msgs))
	}
	bad, ok := msgs[0].(BadMessage)
	if !ok || !errors.Is(bad.Err, ErrMalformedStat) {
		t.Errorf("got %#v, want malformed stat", msgs[0])
	}
}

func TestDecoderMaxSize(t *testing.T) {
	input := frames(t, Rread{Data: make([]byte, 200)}, Rclunk{})
	d := NewDecoder(bytes.NewReader(input))
	d.MaxSize = 128

	if !d.Next() {
		t.Fatal(d.Err())
	}
	if bad, ok := d.Msg().(BadMessage); !ok || !errors.Is(bad.Err, ErrMaxSize) {
		t.Errorf("oversized frame decoded as %#v", d.Msg())
	}
	if !d.Next() {
		t.Fatal(d.Err())
	}
	if _, ok := d.Msg().(Rclunk); !ok {
		t.Errorf("got %T after oversized frame", d.Msg())
	}
}

func TestDecoderEOF(t *testing.T) {
	input := frames(t, Tclunk{Fid: 3})

	d := NewDecoder(bytes.NewReader(input[:len(input)-1]))
	if d.Next() {
		t.Fatal("decoded a truncated frame")
	}
	if d.Err() != io.ErrUnexpectedEOF {
		t.Errorf("mid-frame EOF: got %v", d.Err())
	}

	d = NewDecoder(bytes.NewReader(input[:3]))
	if d.Next() || d.Err() != io.ErrUnexpectedEOF {
		t.Errorf("mid-header EOF: got %v", d.Err())
	}

	d = NewDecoder(bytes.NewReader(nil))
	if d.Next() || d.Err() != nil {
		t.Errorf("clean EOF: got %v", d.Err())
	}
}

func TestDecoderShortSize(t *testing.T) {
	d := NewDecoder(bytes.NewReader([]byte{3, 0, 0, 0, MsgRclunk, 0, 0}))
	if d.Next() {
		t.Fatal("accepted frame smaller than its header")
	}
	if d.Err() == nil {
		t.Error("no error for undersized frame")
	}
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.MaxSize = 64

	if err := enc.Encode(1, Twrite{Fid: 1, Data: []byte("small")}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(2, Twrite{Fid: 1, Data: make([]byte, 64)}); !errors.Is(err, ErrMaxSize) {
		t.Errorf("oversized Twrite: got %v", err)
	}
	msgs, tags := decodeAll(t, &buf)
	if len(msgs) != 1 || tags[0] != 1 {
		t.Fatalf("got %v %v", msgs, tags)
	}
	if w := msgs[0].(Twrite); string(w.Data) != "small" {
		t.Errorf("got %q", w.Data)
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestEncoderStickyError(t *testing.T) {
	enc := NewEncoder(brokenWriter{})
	if err := enc.Encode(1, Tclunk{}); err != io.ErrClosedPipe {
		t.Errorf("got %v", err)
	}
	if err := enc.Encode(2, Tclunk{}); err != io.ErrClosedPipe {
		t.Errorf("second Encode: got %v", err)
	}
	if enc.Err() != io.ErrClosedPipe {
		t.Errorf("Err() = %v", enc.Err())
	}
}
