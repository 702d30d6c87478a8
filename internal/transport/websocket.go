package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

var errBadFrame = errors.New("websocket: write does not start a 9P frame")

// A WebSocket carries a 9P byte stream over a websocket connection.
// Each 9P frame is sent as one binary message. Received messages are
// concatenated, so the peer may split frames however it likes.
type WebSocket struct {
	ws *websocket.Conn

	// only used by Read
	r io.Reader

	// only used by Write
	wbuf []byte

	closeOnce sync.Once
}

// NewWebSocket wraps an established websocket connection.
func NewWebSocket(ws *websocket.Conn) *WebSocket {
	return &WebSocket{ws: ws}
}

// Read reads from the current binary message, moving on to the next
// one when it is exhausted. Text messages are ignored.
func (c *WebSocket) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				return 0, closeErr(err)
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write buffers p until it holds at least one whole 9P frame, then
// sends each complete frame as a binary message.
func (c *WebSocket) Write(p []byte) (int, error) {
	c.wbuf = append(c.wbuf, p...)
	for len(c.wbuf) >= 4 {
		size := int(binary.LittleEndian.Uint32(c.wbuf))
		if size < 7 {
			c.wbuf = c.wbuf[:0]
			return 0, errBadFrame
		}
		if len(c.wbuf) < size {
			break
		}
		if err := c.ws.WriteMessage(websocket.BinaryMessage, c.wbuf[:size]); err != nil {
			return 0, closeErr(err)
		}
		c.wbuf = append(c.wbuf[:0], c.wbuf[size:]...)
	}
	return len(p), nil
}

// Close sends a close message and closes the connection.
func (c *WebSocket) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// closeErr maps websocket close codes onto the errors a stream
// connection would return.
func closeErr(err error) error {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return io.EOF
	case websocket.IsCloseError(err, websocket.CloseAbnormalClosure):
		return fmt.Errorf("%v: %w", err, syscall.ECONNRESET)
	}
	return err
}
