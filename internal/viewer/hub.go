// Package viewer shows camera views in a browser. Frames and status lines
// are pushed to every connected websocket client.
package viewer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/gorilla/websocket"

	"github.com/lanikai/camwatch/internal/media"
	"github.com/lanikai/camwatch/internal/monitor"
)

const (
	// Messages queued per client before the oldest are dropped.
	clientQueue = 8

	writeTimeout = 5 * time.Second
)

// Cache keys for the latest state of each camera, replayed to new clients.
type (
	frameKey  int
	statusKey int
)

type event struct {
	Type   string `json:"type"`
	Camera int    `json:"camera"`
	Status string `json:"status"`
}

// A Hub serves the viewer page and its websocket feed.
type Hub struct {
	server   *http.Server
	upgrader websocket.Upgrader
	bcast    *broadcaster

	// Guards cache, and orders publishes against new subscriptions.
	mu    sync.Mutex
	cache *lru.Cache

	clients atomic.Int32
	dropped atomic.Int64
}

// NewHub returns a Hub that will listen on addr, e.g. ":8000".
func NewHub(addr string) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		bcast: newBroadcaster(),
		cache: lru.New(2 * monitor.MaxCameras),
	}
	h.server = &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}
	return h
}

func (h *Hub) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("/", h.handleIndex)
	router.HandleFunc("/ws", h.handleWebsocket)
	return router
}

// ListenAndServe blocks until the server fails or is shut down. Shutdown is
// not reported as an error.
func (h *Hub) ListenAndServe() error {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	} else if !strings.Contains(host, ".") {
		host += ".local"
	}
	if _, port, err := net.SplitHostPort(h.server.Addr); err == nil && port != "80" {
		host = net.JoinHostPort(host, port)
	}
	log.Info("open http://%s/ in a browser", host)

	if err := h.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown disconnects every client and stops the server.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.bcast.close()
	return h.server.Shutdown(ctx)
}

// View returns the view for the camera with the given index.
func (h *Hub) View(index int) monitor.View {
	return &cameraView{hub: h, index: index}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// Dropped counts messages discarded because a client fell behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) publish(key lru.Key, m message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if key != nil {
		h.cache.Add(key, m)
	}
	if n := h.bcast.write(m); n > 0 {
		h.dropped.Add(int64(n))
	}
}

func (h *Hub) forget(key lru.Key) {
	h.mu.Lock()
	h.cache.Remove(key)
	h.mu.Unlock()
}

func (h *Hub) publishEvent(key lru.Key, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error("marshal %v: %v", ev, err)
		return
	}
	h.publish(key, message{data: data})
}

// subscribe returns the cached state of every camera and a queue for
// everything published afterwards.
func (h *Hub) subscribe() ([]message, <-chan message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var backlog []message
	for i := 1; i <= monitor.MaxCameras; i++ {
		if m, ok := h.cache.Get(statusKey(i)); ok {
			backlog = append(backlog, m.(message))
		}
		if m, ok := h.cache.Get(frameKey(i)); ok {
			backlog = append(backlog, m.(message))
		}
	}
	return backlog, h.bcast.subscribe(clientQueue)
}

func (h *Hub) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	backlog, sub := h.subscribe()
	defer h.bcast.unsubscribe(sub)

	h.clients.Add(1)
	defer h.clients.Add(-1)
	log.Debug("client %v connected", r.RemoteAddr)

	// Clients never send anything we act on, but reading is what processes
	// control frames and notices a closed connection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, m := range backlog {
		if err := send(ws, m); err != nil {
			return
		}
	}
	for {
		select {
		case m, ok := <-sub:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			if err := send(ws, m); err != nil {
				log.Debug("client %v: %v", r.RemoteAddr, err)
				return
			}
		case <-gone:
			log.Debug("client %v disconnected", r.RemoteAddr)
			return
		}
	}
}

func send(ws *websocket.Conn, m message) error {
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if m.binary {
		return ws.WriteMessage(websocket.BinaryMessage, m.data)
	}
	return ws.WriteMessage(websocket.TextMessage, m.data)
}

// cameraView publishes one camera's frames and status to the hub.
type cameraView struct {
	hub   *Hub
	index int
}

// Render sends the frame as [camera][codec][payload]. The payload is copied
// because the caller may reuse its buffer.
func (v *cameraView) Render(bmp *media.Bitmap) {
	if bmp == nil {
		return
	}
	data := make([]byte, 2+len(bmp.Pix))
	data[0] = byte(v.index)
	data[1] = byte(bmp.Codec)
	copy(data[2:], bmp.Pix)
	v.hub.publish(frameKey(v.index), message{binary: true, data: data})
}

func (v *cameraView) SetStatus(status string) {
	v.hub.publishEvent(statusKey(v.index), event{Type: "status", Camera: v.index, Status: status})
}

func (v *cameraView) OnStart() {
	v.hub.publishEvent(nil, event{Type: "start", Camera: v.index})
}

func (v *cameraView) OnStop() {
	v.hub.forget(frameKey(v.index))
	v.hub.publishEvent(nil, event{Type: "stop", Camera: v.index})
}
