package altid

import (
	"math"

	"aqwari.net/net/altid/altidproto"
)

// DontTouch returns a Stat whose fields all hold the "don't touch"
// value defined by stat(5). A Twstat carrying it changes nothing;
// set only the fields that should change.
func DontTouch() altidproto.Stat {
	return altidproto.Stat{
		Type:   math.MaxUint16,
		Dev:    math.MaxUint32,
		Qid:    altidproto.Qid{Type: math.MaxUint8, Version: math.MaxUint32, Path: math.MaxUint64},
		Mode:   math.MaxUint32,
		Atime:  math.MaxUint32,
		Mtime:  math.MaxUint32,
		Length: math.MaxUint64,
	}
}

// Wstat changes the directory entry of the handle's file. Fields of
// st that should not change must hold the values from DontTouch.
func (h *Handle) Wstat(st altidproto.Stat, cb func(error)) {
	h.conn.submit(&request{
		prep: func() (altidproto.Msg, error) {
			if err := h.check(); err != nil {
				return nil, err
			}
			return altidproto.Twstat{Fid: h.Fid, Stat: st}, nil
		},
		cb: func(_ altidproto.Msg, err error) {
			cb(err)
		},
	})
}
