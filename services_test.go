package altid

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"aqwari.net/net/altid/internal/ninetest"
)

func TestServices(t *testing.T) {
	irc, docs := ninetest.New(), ninetest.New()
	irc.Put("/feed", []byte("irc"))
	docs.Put("/feed", []byte("docs"))

	servers := map[string]*ninetest.Server{"irc": irc, "docs": docs}
	client := &Client{}
	client.Dialer = func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
		return servers[endpoint].Dial(ctx, endpoint)
	}
	svcs := NewServices(client)
	defer svcs.Close()
	ctx := testContext(t)

	for name := range servers {
		_, err := svcs.Connect(ctx, name, name)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"docs", "irc"}, svcs.Names())

	// connections are isolated from each other
	for name := range servers {
		c, ok := svcs.Get(name)
		require.True(t, ok)
		data, err := c.Read(ctx, "/feed", 0, 10)
		require.NoError(t, err)
		require.Equal(t, name, string(data))
	}

	again, err := svcs.Connect(ctx, "irc", "irc")
	require.NoError(t, err)
	first, _ := svcs.Get("irc")
	require.Same(t, first, again)
	require.Equal(t, 1, irc.Dials())

	require.NoError(t, svcs.Disconnect("irc"))
	_, ok := svcs.Get("irc")
	require.False(t, ok)
	require.NoError(t, svcs.Disconnect("irc"))

	// a failed connection is pruned
	c, _ := svcs.Get("docs")
	docs.Close()
	<-c.Done()
	_, ok = svcs.Get("docs")
	require.False(t, ok)
	require.Empty(t, svcs.Names())

	_, err = svcs.Connect(ctx, "docs", "docs")
	require.NoError(t, err)
	require.Equal(t, 2, docs.Dials())
	require.NoError(t, svcs.Close())
	require.Empty(t, svcs.Names())
}
