package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanikai/camwatch/internal/media"
)

// recorder is both a Renderer and a View. It logs every call in order.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	status []string
	frames int
	pings  int
	starts int
	stops  int
}

func (r *recorder) Render(bmp *media.Bitmap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.calls = append(r.calls, "render")
}

func (r *recorder) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, status)
	r.calls = append(r.calls, "status:"+status)
}

func (r *recorder) PingLiveness() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pings++
	r.calls = append(r.calls, "ping")
}

func (r *recorder) OnStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
}

func (r *recorder) OnStop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.status...)
}

func (r *recorder) LastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.status) == 0 {
		return ""
	}
	return r.status[len(r.status)-1]
}

func (r *recorder) hasStatus(s string) bool {
	for _, got := range r.Statuses() {
		if got == s {
			return true
		}
	}
	return false
}

func (r *recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *recorder) Pings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pings
}

func (r *recorder) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// manualClock only moves when told to.
type manualClock struct {
	now atomic.Int64
}

func newManualClock() *manualClock {
	c := &manualClock{}
	c.now.Store(int64(time.Second))
	return c
}

func (c *manualClock) Now() time.Duration {
	return time.Duration(c.now.Load())
}

func (c *manualClock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

const (
	waitFor = 2 * time.Second
	pollAt  = 5 * time.Millisecond
)
