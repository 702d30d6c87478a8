package tracing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log"

	"aqwari.net/net/altid/altidproto"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	fn := Logger(log.NewLogfmtLogger(&buf))

	fn.Tx(3, altidproto.Twalk{Fid: 0, Newfid: 1, Wname: []string{"feed"}})
	fn.Rx(3, altidproto.Rread{Data: []byte("secret payload")})

	out := buf.String()
	t.Logf("%s", out)
	for _, want := range []string{"dir=tx", "type=Twalk", "dir=rx", "count=14", "level=debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q", want)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("trace output contains payload")
	}
}

func TestNilTraceFn(t *testing.T) {
	var fn TraceFn
	fn.Tx(1, altidproto.Tclunk{})
	fn.Rx(1, altidproto.Rclunk{})
}
