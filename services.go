package altid

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"aqwari.net/net/altid/internal/threadsafe"
)

// Services holds one connection per named service. Each service has
// its own Conn, and nothing is shared between them. Services is safe
// for concurrent use. The zero value is not usable; create one with
// NewServices.
type Services struct {
	client *Client
	conns  *threadsafe.Map[string, *Conn]
}

// NewServices returns an empty set of services that are dialed with
// client. If client is nil, DefaultClient is used.
func NewServices(client *Client) *Services {
	if client == nil {
		client = DefaultClient
	}
	return &Services{client: client, conns: threadsafe.NewMap[string, *Conn]()}
}

// Connect dials endpoint and registers the connection under name.
// If a live connection for name already exists, it is returned
// instead and endpoint is not dialed.
func (s *Services) Connect(ctx context.Context, name, endpoint string) (*Conn, error) {
	if c, ok := s.Get(name); ok {
		return c, nil
	}
	c, err := s.client.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", name, err)
	}
	if !s.conns.Add(name, c) {
		// lost a race with another Connect
		c.Close()
		if existing, ok := s.Get(name); ok {
			return existing, nil
		}
		return nil, fmt.Errorf("service %s: %w", name, ErrClosed)
	}
	return c, nil
}

// Get returns the connection for a service. Connections that have
// stopped are removed and not returned.
func (s *Services) Get(name string) (*Conn, bool) {
	c, ok := s.conns.Get(name)
	if !ok {
		return nil, false
	}
	select {
	case <-c.Done():
		s.conns.Do(func(m map[string]*Conn) {
			if m[name] == c {
				delete(m, name)
			}
		})
		return nil, false
	default:
		return c, true
	}
}

// Names returns the names of all registered services, sorted.
func (s *Services) Names() []string {
	return s.conns.SortedKeys(func(a, b string) bool { return a < b })
}

// Disconnect closes the connection for a service and removes it.
func (s *Services) Disconnect(name string) error {
	c, ok := s.conns.Take(name)
	if !ok {
		return nil
	}
	return c.Close()
}

// Close closes every connection.
func (s *Services) Close() error {
	var conns []*Conn
	s.conns.Do(func(m map[string]*Conn) {
		for name, c := range m {
			conns = append(conns, c)
			delete(m, name)
		}
	})
	var result *multierror.Error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.ID(), err))
		}
	}
	return result.ErrorOrNil()
}
