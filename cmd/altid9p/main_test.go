package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"aqwari.net/net/altid/altidproto"
	"aqwari.net/net/altid/internal/ninetest"
)

func execute(t *testing.T, srv *ninetest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log_level = "error"

[[service]]
name = "irc"
addr = "pipe"
`), 0600))

	var out bytes.Buffer
	cmd := newRootCmd(&options{dial: srv.Dial})
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestReadWriteCommands(t *testing.T) {
	srv := ninetest.New()
	srv.Put("/#altid/feed", []byte("hello"))
	srv.Put("/#altid/ctrl", nil)
	srv.Put("/#altid/input", nil)

	out, err := execute(t, srv, "", "read", "irc", "/#altid/feed")
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	_, err = execute(t, srv, "", "write", "irc", "/#altid/ctrl", "open", "#9fans")
	require.NoError(t, err)
	data, _ := srv.Get("/#altid/ctrl")
	require.Equal(t, "open #9fans", string(data))

	_, err = execute(t, srv, "from stdin", "write", "irc", "/#altid/input")
	require.NoError(t, err)
	data, _ = srv.Get("/#altid/input")
	require.Equal(t, "from stdin", string(data))
}

func TestCreateStatRemove(t *testing.T) {
	srv := ninetest.New()

	_, err := execute(t, srv, "", "create", "-d", "irc", "/logs")
	require.NoError(t, err)

	out, err := execute(t, srv, "", "stat", "irc", "/logs")
	require.NoError(t, err)
	require.Contains(t, out, "drwxr-xr-x")

	_, err = execute(t, srv, "", "rm", "irc", "/logs")
	require.NoError(t, err)

	_, err = execute(t, srv, "", "stat", "irc", "/logs")
	require.Error(t, err)
}

func TestServicesCommand(t *testing.T) {
	srv := ninetest.New()
	out, err := execute(t, srv, "", "services")
	require.NoError(t, err)
	require.Contains(t, out, "irc")
	require.Contains(t, out, "ready")
}

func TestModeString(t *testing.T) {
	require.Equal(t, "drwxr-xr-x", modeString(altidproto.DMDIR|0755))
	require.Equal(t, "-rw-r--r--", modeString(0644))
}
