package monitor

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/camwatch/internal/media"
)

// MaxCameras is the largest number of cameras one supervisor watches.
const MaxCameras = 3

// A Clock returns monotonic time elapsed since some fixed origin. Zero is
// reserved to mean "never", so a Clock must return positive values.
type Clock func() time.Duration

var origin = time.Now()

// Monotonic is the default Clock.
func Monotonic() time.Duration {
	return time.Since(origin) + 1
}

type Config struct {
	// Camera URLs keyed by 1-based camera index.
	URLs map[int]string

	Opener  media.Opener
	Options media.Options

	// A worker that has produced frames is replaced once it has been silent
	// for longer than this.
	StallTimeout time.Duration

	RefreshInterval  time.Duration
	StatsInterval    time.Duration
	CleanupInterval  time.Duration
	RetryDelay       time.Duration
	LivenessInterval time.Duration

	// Bound on waiting for retired workers at shutdown.
	ShutdownTimeout time.Duration

	// Per-slot bound on joining the current worker in StopBlocking.
	SlotStopTimeout time.Duration

	// Overlay generation and stall counters on each view.
	DebugDisplay bool

	Clock Clock
}

func DefaultConfig() Config {
	return Config{
		URLs:             map[int]string{},
		Opener:           media.Registry,
		Options:          media.DefaultOptions(),
		StallTimeout:     8 * time.Second,
		RefreshInterval:  time.Second,
		StatsInterval:    10 * time.Minute,
		CleanupInterval:  10 * time.Minute,
		RetryDelay:       5 * time.Second,
		LivenessInterval: time.Second,
		ShutdownTimeout:  10 * time.Second,
		SlotStopTimeout:  5 * time.Second,
		Clock:            Monotonic,
	}
}

// withDefaults fills every zero field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Opener == nil {
		c.Opener = d.Opener
	}
	if c.Options == (media.Options{}) {
		c.Options = d.Options
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = d.StallTimeout
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = d.StatsInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = d.LivenessInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.SlotStopTimeout <= 0 {
		c.SlotStopTimeout = d.SlotStopTimeout
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}

// Validate checks that there are between 1 and MaxCameras cameras, numbered
// 1..N without gaps, each with a URL.
func (c *Config) Validate() error {
	n := len(c.URLs)
	if n < 1 || n > MaxCameras {
		return errors.Errorf("camera count %d out of range 1..%d", n, MaxCameras)
	}
	for i := 1; i <= n; i++ {
		url, ok := c.URLs[i]
		if !ok {
			return errors.Errorf("camera %d missing", i)
		}
		if url == "" {
			return errors.Errorf("camera %d has no URL", i)
		}
	}
	return nil
}

// indexes returns the camera indexes in ascending order.
func (c *Config) indexes() []int {
	idx := make([]int, 0, len(c.URLs))
	for i := range c.URLs {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
