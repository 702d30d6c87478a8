// Package tracing provides tracing of sent and received 9P
// messages.
package tracing

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"aqwari.net/net/altid/altidproto"
)

// Direction of a traced message.
const (
	Sent     = "tx"
	Received = "rx"
)

// A TraceFn can be used to access 9P messages as they pass through
// a connection. Messages are not copied; a TraceFn should not modify
// msg. A nil TraceFn traces nothing.
type TraceFn func(dir string, tag uint16, msg altidproto.Msg)

// Tx traces an outgoing message.
func (fn TraceFn) Tx(tag uint16, msg altidproto.Msg) {
	if fn != nil {
		fn(Sent, tag, msg)
	}
}

// Rx traces an incoming message.
func (fn TraceFn) Rx(tag uint16, msg altidproto.Msg) {
	if fn != nil {
		fn(Received, tag, msg)
	}
}

// Logger returns a TraceFn that writes each message to l at debug
// level.
func Logger(l log.Logger) TraceFn {
	l = level.Debug(l)
	return func(dir string, tag uint16, msg altidproto.Msg) {
		l.Log("dir", dir, "tag", tag, "type", altidproto.MsgName(msg.Type()), "fcall", describe(msg))
	}
}

// Payloads are summarized rather than dumped.
func describe(msg altidproto.Msg) string {
	switch m := msg.(type) {
	case altidproto.Rread:
		return fmt.Sprintf("count=%d", len(m.Data))
	case altidproto.Twrite:
		return fmt.Sprintf("fid=%d offset=%d count=%d", m.Fid, m.Offset, len(m.Data))
	case fmt.Stringer:
		return m.String()
	}
	return fmt.Sprintf("%+v", msg)
}
