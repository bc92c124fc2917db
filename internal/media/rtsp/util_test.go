package rtsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLAddsDefaultPort(t *testing.T) {
	u, err := ParseURL("rtsp://admin:pw@10.0.0.5/stream1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:554", u.Host)
	assert.Equal(t, "admin", u.User.Username())
}

func TestParseURLKeepsExplicitPort(t *testing.T) {
	u, err := ParseURL("rtsp://cam.local:8554/live")
	require.NoError(t, err)
	assert.Equal(t, "cam.local:8554", u.Host)
}

func TestParseURLIPv6(t *testing.T) {
	u, err := ParseURL("rtsp://[fe80::1]/live")
	require.NoError(t, err)
	assert.Equal(t, "[fe80::1]:554", u.Host)
}

func TestParseURLRejectsOtherSchemes(t *testing.T) {
	_, err := ParseURL("http://cam/live")
	assert.Error(t, err)

	_, err = ParseURL("rtsp:///live")
	assert.Error(t, err)
}
