package cmdutil

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	var ll LogLevel
	require.Equal(t, "info", ll.String())
	require.False(t, ll.IsSet())

	require.NoError(t, ll.Set("WARN"))
	require.Equal(t, "warn", ll.String())
	require.True(t, ll.IsSet())

	var buf bytes.Buffer
	l := level.NewFilter(log.NewLogfmtLogger(&buf), ll.FilterOption())
	level.Info(l).Log("msg", "hidden")
	level.Warn(l).Log("msg", "shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	require.Error(t, ll.Set("loud"))
	require.Equal(t, "warn", ll.String(), "failed Set must not change the level")
}
