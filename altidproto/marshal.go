package altidproto

import "fmt"

// Marshal returns the complete wire representation of m, header
// included, using the given tag.
func Marshal(tag uint16, m Msg) ([]byte, error) {
	return AppendMsg(make([]byte, 0, HeaderSize+64), tag, m)
}

// AppendMsg appends the wire representation of m to buf and returns
// the extended buffer.
func AppendMsg(buf []byte, tag uint16, m Msg) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || (e != errLongString && e != errLongStat && e != errNulString) {
				panic(r)
			}
			b, err = buf, e
		}
	}()
	start := len(buf)
	b, err = appendBody(pheader(buf, m.Type(), tag), m)
	if err != nil {
		return buf, err
	}
	writelen(b[start:])
	return b, nil
}

// MarshalBody returns the wire representation of m, without the
// 7-byte header. It is the inverse of Unmarshal.
func MarshalBody(m Msg) ([]byte, error) {
	b, err := Marshal(0, m)
	if err != nil {
		return nil, err
	}
	return b[HeaderSize:], nil
}

func appendBody(b []byte, m Msg) ([]byte, error) {
	switch m := m.(type) {
	case Tversion:
		b = puint32(b, m.Msize)
		b = pstring(b, m.Version)
	case Rversion:
		b = puint32(b, m.Msize)
		b = pstring(b, m.Version)
	case Tauth:
		b = puint32(b, m.Afid)
		b = pstring(b, m.Uname, m.Aname)
	case Rauth:
		b = pqid(b, m.Aqid)
	case Tattach:
		b = puint32(b, m.Fid, m.Afid)
		b = pstring(b, m.Uname, m.Aname)
	case Rattach:
		b = pqid(b, m.Qid)
	case Rerror:
		b = pstring(b, m.Ename)
	case Tflush:
		b = puint16(b, m.Oldtag)
	case Twalk:
		if len(m.Wname) > MaxWElem {
			return b, errLongWalk
		}
		b = puint32(b, m.Fid, m.Newfid)
		b = puint16(b, uint16(len(m.Wname)))
		b = pstring(b, m.Wname...)
	case Rwalk:
		if len(m.Wqid) > MaxWElem {
			return b, errLongWalk
		}
		b = puint16(b, uint16(len(m.Wqid)))
		b = pqid(b, m.Wqid...)
	case Topen:
		b = puint32(b, m.Fid)
		b = puint8(b, m.Mode)
	case Ropen:
		b = pqid(b, m.Qid)
		b = puint32(b, m.Iounit)
	case Tcreate:
		b = puint32(b, m.Fid)
		b = pstring(b, m.Name)
		b = puint32(b, m.Perm)
		b = puint8(b, m.Mode)
	case Rcreate:
		b = pqid(b, m.Qid)
		b = puint32(b, m.Iounit)
	case Tread:
		b = puint32(b, m.Fid)
		b = puint64(b, m.Offset)
		b = puint32(b, m.Count)
	case Rread:
		b = puint32(b, uint32(len(m.Data)))
		b = append(b, m.Data...)
	case Twrite:
		b = puint32(b, m.Fid)
		b = puint64(b, m.Offset)
		b = puint32(b, uint32(len(m.Data)))
		b = append(b, m.Data...)
	case Rwrite:
		b = puint32(b, m.Count)
	case Tclunk:
		b = puint32(b, m.Fid)
	case Tremove:
		b = puint32(b, m.Fid)
	case Tstat:
		b = puint32(b, m.Fid)
	case Rstat:
		b = pstat(b, m.Stat)
	case Twstat:
		b = puint32(b, m.Fid)
		b = pstat(b, m.Stat)
	case Rflush, Rclunk, Rremove, Rwstat:
	default:
		return b, fmt.Errorf("cannot marshal %T", m)
	}
	return b, nil
}
