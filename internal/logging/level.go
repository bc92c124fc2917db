package logging

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Level is a logging verbosity. Anything above Debug is a numbered trace
// level, up to MaxLevel.
type Level int

const (
	Error Level = iota - 2
	Warn
	Info
	Debug

	MaxLevel Level = 9
)

// Overridden by LOGLEVEL.
var defaultLevel = Info

var levelNames = []struct {
	name  string
	level Level
}{
	{"error", Error},
	{"warn", Warn},
	{"info", Info},
	{"debug", Debug},
	{"trace", MaxLevel},
}

// parseLevel accepts a level name, its initial, or a number in
// [Error, MaxLevel].
func parseLevel(s string) (Level, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, n := range levelNames {
		if key == n.name || (len(key) == 1 && key[0] == n.name[0]) {
			return n.level, nil
		}
	}

	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, errors.Errorf("invalid logging level %q", s)
	}
	if l := Level(n); l >= Error && l <= MaxLevel {
		return l, nil
	}
	return 0, errors.Errorf("logging level %d out of range", n)
}

func (l Level) String() string {
	if l >= Error && l <= Debug {
		n := levelNames[l-Error].name
		return strings.ToUpper(n[:1]) + n[1:]
	}
	return strconv.Itoa(int(l))
}

// letter is the single character shown in each log line.
func (l Level) letter() byte {
	if l >= Error && l <= Debug {
		return "EWID"[l-Error]
	}
	return '0' + byte(l)
}
