package altidproto

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
)

var testStat = Stat{
	Type:   1,
	Dev:    2,
	Qid:    Qid{Type: QTFILE, Version: 3, Path: 0xdeadbeef},
	Mode:   0644,
	Atime:  1500000000,
	Mtime:  1500000001,
	Length: 40,
	Name:   "feed",
	Uid:    "glenda",
	Gid:    "altid",
	Muid:   "",
}

var sampleMessages = []Msg{
	Tversion{Msize: 8192, Version: "9P2000"},
	Rversion{Msize: 4096, Version: "9P2000"},
	Tauth{Afid: 1, Uname: "guest", Aname: "/"},
	Rauth{Aqid: Qid{Type: QTAUTH, Path: 9}},
	Tattach{Fid: 0, Afid: NoAuth, Uname: "guest", Aname: "/"},
	Rattach{Qid: Qid{Type: QTDIR, Version: 1, Path: 1}},
	Rerror{Ename: "file does not exist"},
	Tflush{Oldtag: 7},
	Rflush{},
	Twalk{Fid: 0, Newfid: 1, Wname: []string{"irc", "#altid", "feed"}},
	Twalk{Fid: 0, Newfid: 2},
	Rwalk{Wqid: []Qid{{Type: QTDIR, Path: 2}, {Path: 3}}},
	Rwalk{},
	Topen{Fid: 1, Mode: OREAD},
	Ropen{Qid: Qid{Path: 3}, Iounit: 8168},
	Tcreate{Fid: 1, Name: "notes", Perm: 0644, Mode: OWRITE | OTRUNC},
	Rcreate{Qid: Qid{Path: 4}, Iounit: 0},
	Tread{Fid: 1, Offset: 1 << 40, Count: 8168},
	Rread{Data: []byte("hello, world")},
	Rread{},
	Twrite{Fid: 1, Offset: 12, Data: []byte("/join #altid\n")},
	Rwrite{Count: 13},
	Tclunk{Fid: 1},
	Rclunk{},
	Tremove{Fid: 1},
	Rremove{},
	Tstat{Fid: 1},
	Rstat{Stat: testStat},
	Twstat{Fid: 1, Stat: testStat},
	Rwstat{},

	// widest values for every field
	Tversion{Msize: math.MaxUint32, Version: "9P2000"},
	Tattach{Fid: math.MaxUint32, Afid: math.MaxUint32, Uname: "guest", Aname: "/"},
	Tflush{Oldtag: math.MaxUint16},
	Twalk{Fid: math.MaxUint32, Newfid: math.MaxUint32, Wname: []string{"a"}},
	Rwalk{Wqid: []Qid{maxQid}},
	Topen{Fid: math.MaxUint32, Mode: math.MaxUint8},
	Ropen{Qid: maxQid, Iounit: math.MaxUint32},
	Tcreate{Fid: math.MaxUint32, Name: "x", Perm: math.MaxUint32, Mode: math.MaxUint8},
	Tread{Fid: math.MaxUint32, Offset: math.MaxUint64, Count: math.MaxUint32},
	Twrite{Fid: math.MaxUint32, Offset: math.MaxUint64, Data: []byte{0xff}},
	Rwrite{Count: math.MaxUint32},
	Tclunk{Fid: math.MaxUint32},
	Rstat{Stat: maxStat},
	Twstat{Fid: math.MaxUint32, Stat: maxStat},
}

var maxQid = Qid{Type: math.MaxUint8, Version: math.MaxUint32, Path: math.MaxUint64}

var maxStat = Stat{
	Type:   math.MaxUint16,
	Dev:    math.MaxUint32,
	Qid:    maxQid,
	Mode:   math.MaxUint32,
	Atime:  math.MaxUint32,
	Mtime:  math.MaxUint32,
	Length: math.MaxUint64,
	Name:   "n",
	Uid:    "u",
	Gid:    "g",
	Muid:   "m",
}

// Empty and nil slices decode the same way.
func normalize(m Msg) Msg {
	switch v := m.(type) {
	case Twalk:
		if len(v.Wname) == 0 {
			v.Wname = nil
		}
		return v
	case Rwalk:
		if len(v.Wqid) == 0 {
			v.Wqid = nil
		}
		return v
	case Rread:
		if len(v.Data) == 0 {
			v.Data = nil
		}
		return v
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	for _, tag := range []uint16{0, 42, math.MaxUint16} {
		testRoundTrip(t, tag)
	}
}

func testRoundTrip(t *testing.T, tag uint16) {
	for _, want := range sampleMessages {
		frame, err := Marshal(tag, want)
		if err != nil {
			t.Errorf("Marshal(%v): %v", want, err)
			continue
		}
		if n := guint32(frame[:4]); int(n) != len(frame) {
			t.Errorf("%s: size field %d, frame is %d bytes", MsgName(want.Type()), n, len(frame))
		}
		if frame[4] != want.Type() || guint16(frame[5:7]) != tag {
			t.Errorf("%s: bad header % x", MsgName(want.Type()), frame[:7])
		}
		got, err := Unmarshal(frame[4], tag, frame[HeaderSize:])
		if err != nil {
			t.Errorf("Unmarshal %s: %v", MsgName(want.Type()), err)
			continue
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
		}
	}
}

func TestLittleEndian(t *testing.T) {
	frame, err := Marshal(0x0102, Tread{Fid: 0x03040506, Offset: 0x0708, Count: 0x090a})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		23, 0, 0, 0, // size
		MsgTread,
		0x02, 0x01, // tag
		0x06, 0x05, 0x04, 0x03, // fid
		0x08, 0x07, 0, 0, 0, 0, 0, 0, // offset
		0x0a, 0x09, 0, 0, // count
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("got  % x\nwant % x", frame, want)
	}
	if len(frame) != IOHeaderSize {
		t.Errorf("Tread is %d bytes, IOHeaderSize is %d", len(frame), IOHeaderSize)
	}
}

func TestTruncated(t *testing.T) {
	for _, m := range sampleMessages {
		body, err := MarshalBody(m)
		if err != nil {
			t.Fatal(err)
		}
		for n := 0; n < len(body); n++ {
			_, err := Unmarshal(m.Type(), 1, body[:n])
			if err == nil {
				t.Errorf("%s truncated to %d/%d bytes decoded without error",
					MsgName(m.Type()), n, len(body))
				continue
			}
			if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrMalformedStat) {
				t.Errorf("%s truncated to %d bytes: got %v", MsgName(m.Type()), n, err)
			}
		}
	}
}

func TestUnknownOperation(t *testing.T) {
	for _, op := range []uint8{0, 99, 106, 128, 255} {
		_, err := Unmarshal(op, 1, make([]byte, 32))
		if !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("Unmarshal(%d): got %v, want ErrUnknownOperation", op, err)
		}
		var derr *DecodeError
		if !errors.As(err, &derr) || derr.Type != op || derr.Tag != 1 {
			t.Errorf("Unmarshal(%d): bad DecodeError %#v", op, err)
		}
	}
}

func statWithNames(block string) []byte {
	b := MarshalStat(Stat{})[:statFixedSize]
	b = append(b, block...)
	puint16(b[:0], uint16(len(b)-2))
	return b
}

func TestMalformedStat(t *testing.T) {
	bad := []string{
		"",
		"name\x00uid\x00gid\x00",
		"name\x00uid\x00gid\x00muid",
		"name\x00uid\x00gid\x00muid\x00extra\x00",
	}
	for _, block := range bad {
		_, err := Unmarshal(MsgRstat, 3, statWithNames(block))
		if !errors.Is(err, ErrMalformedStat) {
			t.Errorf("stat names %q: got %v, want ErrMalformedStat", block, err)
		}
	}

	m, err := Unmarshal(MsgRstat, 3, statWithNames("name\x00uid\x00gid\x00muid\x00"))
	if err != nil {
		t.Fatal(err)
	}
	st := m.(Rstat).Stat
	if st.Name != "name" || st.Uid != "uid" || st.Gid != "gid" || st.Muid != "muid" {
		t.Errorf("decoded names %q %q %q %q", st.Name, st.Uid, st.Gid, st.Muid)
	}
}

func TestMarshalErrors(t *testing.T) {
	long := make([]string, MaxWElem+1)
	if _, err := Marshal(1, Twalk{Wname: long}); err == nil {
		t.Error("Twalk with too many elements marshalled")
	}
	if _, err := Marshal(1, Rerror{Ename: string(make([]byte, 1<<16))}); err == nil {
		t.Error("oversized string marshalled")
	}
	if _, err := Marshal(1, Rstat{Stat: Stat{Name: "a\x00b"}}); err == nil {
		t.Error("stat name with NUL marshalled")
	}
	if _, err := Marshal(1, BadMessage{MsgType: 200}); err == nil {
		t.Error("BadMessage marshalled")
	}
}
