// Package prefs provides key-value preference lookups.
package prefs

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A Store looks up preference values by key.
type Store interface {
	Lookup(key string) (string, bool)
}

// Map is an in-memory Store.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain looks keys up in each store in order and returns the first hit.
type Chain []Store

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// Env maps keys to environment variables: "cameras.url.1" with prefix
// "CAMWATCH_" reads CAMWATCH_CAMERAS_URL_1.
type Env string

func (prefix Env) Lookup(key string) (string, bool) {
	name := string(prefix) + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	return os.LookupEnv(name)
}

// LoadFile reads "key = value" lines. Blank lines and lines starting with '#'
// are ignored; later keys override earlier ones.
func LoadFile(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := Map{}
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			return nil, errors.Errorf("%s:%d: expected 'key = value'", path, n)
		}
		m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// String returns the value for key, or def when absent.
func String(s Store, key, def string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as an integer, or def when absent or
// malformed.
func Int(s Store, key string, def int) int {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value for key parsed with strconv.ParseBool, or def when
// absent or malformed.
func Bool(s Store, key string, def bool) bool {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
