package altid

import (
	"context"
	"io"
	"time"

	"aqwari.net/retry"
	"github.com/go-kit/log"

	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/transport"
)

// DefaultClient is the Client used by the top-level Dial function.
var DefaultClient = &Client{}

// A DialFunc opens a byte stream to a 9P server. The endpoint is
// passed through from Client.Dial unchanged.
type DialFunc func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error)

// A Client is a 9P client, used to make remote requests to
// a 9P server. The zero value of a Client is a usable 9P client
// that uses default settings chosen by the altid package.
type Client struct {
	// The maximum size of a single 9P message, proposed to the
	// server during the version handshake. If zero, defaults to
	// altidproto.DefaultMaxSize. A server may choose a smaller
	// size, which then applies to every later message.
	MaxSize uint32

	// Timeout specifies the amount of time to wait for a response
	// from the server. Note that Timeout does not apply to Read
	// requests, to avoid interfering with long-poll or message
	// queue-like interfaces, where a client issues a Read request
	// for data that has not arrived yet. If zero, defaults to infinity.
	Timeout time.Duration

	// User and Aname are sent in the attach request. They default
	// to "guest" and "/".
	User, Aname string

	// Dialer opens transports for Client.Dial. If nil, endpoints are
	// dialed with the rules described in the Dial function.
	Dialer DialFunc

	// Logger receives connection events. If nil, nothing is logged.
	Logger log.Logger

	// If not nil, every 9P message sent or received is logged
	// to TraceLog.
	TraceLog log.Logger

	// Metrics, if not nil, is updated by all connections made with
	// the Client.
	Metrics *Metrics

	// OnStateChange, if not nil, is called from a connection's event
	// loop each time the connection changes state. A transition to
	// StateFailed carries the error that ended the connection.
	// OnStateChange must not block.
	OnStateChange func(c *Conn, s State, err error)
}

var reconnectBackoff = retry.Exponential(10 * time.Millisecond).Max(2 * time.Second)

func (c *Client) maxSize() uint32 {
	if c.MaxSize > altidproto.IOHeaderSize {
		return c.MaxSize
	}
	return altidproto.DefaultMaxSize
}

func (c *Client) user() string {
	if c.User != "" {
		return c.User
	}
	return "guest"
}

func (c *Client) aname() string {
	if c.Aname != "" {
		return c.Aname
	}
	return "/"
}

func (c *Client) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.NewNopLogger()
}

func (c *Client) dialer() DialFunc {
	if c.Dialer != nil {
		return c.Dialer
	}
	return func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
		return transport.Dial(ctx, endpoint)
	}
}

// Dial connects to the 9P server at endpoint and completes the
// version and attach handshake. Endpoints take one of the forms
//
// 	host:port
// 	tcp://host:port
// 	unix:///path/to/socket
// 	ws://host:port/path
// 	wss://host:port/path
//
// A missing port defaults to 564. If the server aborts a connection
// made with Dial, the Client dials endpoint again once before giving
// up.
func (c *Client) Dial(ctx context.Context, endpoint string) (*Conn, error) {
	dial := c.dialer()
	conn := newConn(c, endpoint, dial)
	conn.setState(StateConnecting, nil)

	rwc, err := dial(ctx, endpoint)
	if err != nil {
		conn.setState(StateFailed, err)
		return nil, err
	}
	attached := make(chan error, 1)
	conn.attached = attached
	conn.start(rwc)
	go conn.run()

	select {
	case err := <-attached:
		if err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
}

// NewConn starts a 9P session on an established transport. The
// handshake is queued ahead of any other request, so the returned
// Conn may be used immediately. A Conn created with NewConn never
// reconnects. Its OnStateChange observers see the same Connecting,
// Ready sequence as for a dialed Conn.
func (c *Client) NewConn(rwc io.ReadWriteCloser) *Conn {
	conn := newConn(c, "", nil)
	conn.setState(StateConnecting, nil)
	conn.start(rwc)
	go conn.run()
	return conn
}

// Dial connects to endpoint using DefaultClient.
func Dial(ctx context.Context, endpoint string) (*Conn, error) {
	return DefaultClient.Dial(ctx, endpoint)
}
