package media

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// Register an Opener for a URL scheme, e.g. "rtsp". Source packages call this
// from init(); registering the same scheme twice replaces the earlier opener.
func Register(scheme string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = opener
}

// Schemes returns the registered URL schemes, sorted.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var schemes []string
	for s := range registry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Registry dispatches Open to the Opener registered for the URL's scheme.
var Registry Opener = OpenerFunc(Open)

// Open a session using the Opener registered for the URL's scheme.
func Open(ctx context.Context, rawurl string, opts Options) (Session, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, CouldNotOpen(err, "invalid URL")
	}

	registryMu.RLock()
	opener, found := registry[strings.ToLower(u.Scheme)]
	registryMu.RUnlock()

	if !found {
		log.Debug("Registered source schemes: %v", Schemes())
		return nil, CouldNotOpen(errors.Errorf("scheme '%s' not registered", u.Scheme), "%s", Redact(rawurl))
	}
	return opener.Open(ctx, rawurl, opts)
}

// Redact removes credentials from a URL so it can be logged.
func Redact(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.User == nil {
		return rawurl
	}
	u.User = url.User("xxx")
	return u.String()
}
