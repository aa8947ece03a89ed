package serialurl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiagocoutinho/serialio"
)

func TestParseHostPort(t *testing.T) {
	target, err := Parse("localhost:4000")
	require.NoError(t, err)
	require.Equal(t, "rfc2217", target.Scheme)
	require.Equal(t, "localhost", target.Host)
	require.Equal(t, "4000", target.Port)
}

func TestParseSchemeRFC2217(t *testing.T) {
	target, err := Parse("rfc2217://192.168.1.1:2217")
	require.NoError(t, err)
	require.Equal(t, "rfc2217", target.Scheme)
	require.Equal(t, "192.168.1.1", target.Host)
	require.Equal(t, "2217", target.Port)
}

func TestParseSchemeSerialRFC2217(t *testing.T) {
	target, err := Parse("serial+rfc2217://host:7000")
	require.NoError(t, err)
	require.Equal(t, "serial+rfc2217", target.Scheme)
}

func TestParseBareDevicePath(t *testing.T) {
	target, err := Parse("/dev/ttyUSB0")
	require.NoError(t, err)
	require.Equal(t, "serial", target.Scheme)
	require.Equal(t, "/dev/ttyUSB0", target.Path)
}

func TestParseQueryOptions(t *testing.T) {
	target, err := Parse("host:2217?logging=debug&ign_set_control&poll_modem&timeout=1.5")
	require.NoError(t, err)
	require.Equal(t, "debug", target.LogLevel)
	require.True(t, target.IgnoreSetControl)
	require.True(t, target.PollModem)
	require.True(t, target.HasNetworkTimeout)
	require.Equal(t, 1500*time.Millisecond, target.NetworkTimeout)
}

func TestParseInvalidPort(t *testing.T) {
	_, err := Parse("host:99999")
	require.Error(t, err)
}

func TestParseUnknownOption(t *testing.T) {
	_, err := Parse("host:2217?bogus=1")
	require.Error(t, err)
}

func TestParseUnknownScheme(t *testing.T) {
	_, err := Parse("ftp://host:21")
	require.Error(t, err)
}

func TestOpenUnregisteredScheme(t *testing.T) {
	// serialurl never imports the transport packages (to avoid an import
	// cycle), so in this test binary no scheme has a Dialer registered.
	_, err := Open(context.Background(), "tcp://host:1234", serialio.DefaultConfig())
	require.Error(t, err)
}
