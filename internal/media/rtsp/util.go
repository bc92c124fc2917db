package rtsp

import (
	"net"
	"net/url"
	"strings"

	errors "golang.org/x/xerrors"
)

const defaultPort = "554"

// ParseURL validates an RTSP URL and adds the default port when absent.
func ParseURL(rawurl string) (*url.URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(u.Scheme, "rtsp") {
		return nil, errors.Errorf("invalid RTSP URL: scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("invalid RTSP URL: missing host")
	}

	if u.Port() == "" {
		// Add default RTSP port to the host.
		u.Host = net.JoinHostPort(u.Hostname(), defaultPort)
	}

	return u, nil
}
