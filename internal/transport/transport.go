// Package transport opens the byte streams that carry 9P sessions.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// DefaultPort is the port assumed for endpoints that do not name one.
const DefaultPort = "564"

// Networks returned by ParseEndpoint.
const (
	TCP  = "tcp"
	Unix = "unix"
	WS   = "ws"
)

// ParseEndpoint splits an endpoint into a network and an address.
// Accepted forms are
//
// 	host
// 	host:port
// 	tcp!host!port
// 	tcp://host:port
// 	unix:///path/to/socket
// 	ws://host:port/path
// 	wss://host:port/path
//
// For websocket endpoints, the address is the endpoint itself.
func ParseEndpoint(endpoint string) (network, address string, err error) {
	if endpoint == "" {
		return "", "", fmt.Errorf("empty endpoint")
	}
	if strings.Contains(endpoint, "!") && !strings.Contains(endpoint, "://") {
		return parseDialString(endpoint)
	}
	if !strings.Contains(endpoint, "://") {
		return TCP, withPort(endpoint), nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "tcp", "tcp4", "tcp6":
		if u.Host == "" {
			return "", "", fmt.Errorf("endpoint %q: missing host", endpoint)
		}
		return u.Scheme, withPort(u.Host), nil
	case "unix":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return "", "", fmt.Errorf("endpoint %q: missing socket path", endpoint)
		}
		return Unix, p, nil
	case "ws", "wss":
		if u.Host == "" {
			return "", "", fmt.Errorf("endpoint %q: missing host", endpoint)
		}
		return WS, endpoint, nil
	}
	return "", "", fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
}

// Plan 9 dial strings, as advertised by some altid services.
func parseDialString(s string) (network, address string, err error) {
	parts := strings.Split(s, "!")
	switch {
	case len(parts) == 2 && parts[0] == "unix":
		return Unix, parts[1], nil
	case len(parts) == 2 && (parts[0] == "tcp" || parts[0] == "net"):
		return TCP, withPort(parts[1]), nil
	case len(parts) == 3 && (parts[0] == "tcp" || parts[0] == "net"):
		return TCP, net.JoinHostPort(parts[1], parts[2]), nil
	}
	return "", "", fmt.Errorf("bad dial string %q", s)
}

func withPort(hostport string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(strings.Trim(hostport, "[]"), DefaultPort)
}

// Dial connects to endpoint.
func Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	network, address, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if network == WS {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, err
		}
		return NewWebSocket(ws), nil
	}
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}
