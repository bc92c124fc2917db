package monitor

import (
	"sync/atomic"

	"github.com/lanikai/camwatch/internal/media"
)

// Status strings shown on a camera's view.
const (
	StatusConnecting   = "Connecting"
	StatusDisconnected = "Disconnected"
	StatusNone         = ""
)

// A Renderer is what a Worker delivers to. Calls come from the worker's own
// goroutine.
type Renderer interface {
	Render(bmp *media.Bitmap)
	SetStatus(status string)

	// PingLiveness tells the watchdog the worker is alive even though no
	// frame is being rendered, e.g. while waiting to reconnect.
	PingLiveness()
}

// A View displays one camera. Render and SetStatus may be called from worker
// goroutines; OnStart and OnStop come from the supervisor.
type View interface {
	Render(bmp *media.Bitmap)
	SetStatus(status string)
	OnStart()
	OnStop()
}

// renderProxy stands between a Worker and its Slot. Once invalidated it drops
// everything, so a retired worker that is still draining cannot touch the
// view or the stall timestamps.
type renderProxy struct {
	slot  *Slot
	valid atomic.Bool
}

func newRenderProxy(slot *Slot) *renderProxy {
	p := &renderProxy{slot: slot}
	p.valid.Store(true)
	return p
}

func (p *renderProxy) Render(bmp *media.Bitmap) {
	if !p.valid.Load() {
		return
	}
	p.slot.pingRender()
	p.slot.view.Render(bmp)
}

func (p *renderProxy) SetStatus(status string) {
	if !p.valid.Load() {
		return
	}
	p.slot.view.SetStatus(status)
}

func (p *renderProxy) PingLiveness() {
	if !p.valid.Load() {
		return
	}
	p.slot.pingLiveness()
}

func (p *renderProxy) invalidate() {
	p.valid.Store(false)
}

func (p *renderProxy) isValid() bool {
	return p.valid.Load()
}
