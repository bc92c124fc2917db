package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const (
	// GA4 Measurement Protocol endpoint.
	DefaultEndpoint = "https://www.google-analytics.com/mp/collect"

	defaultQueueSize = 256
	idleBackoff      = time.Second
	maxBackoff       = 5 * time.Minute

	// Consecutive failures before the collector starts backing off.
	maxErrors = 2
)

// Collector posts events to a GA4 Measurement Protocol endpoint from a single
// background goroutine. ReportEvent never blocks: when the queue is full the
// event is dropped and counted.
type Collector struct {
	Endpoint string
	Client   *http.Client

	measurementID string
	clientID      string
	apiSecret     string

	queue   chan Event
	dropped uint64
	sent    uint64

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

var idFilter = regexp.MustCompile(`[^A-Za-z0-9|-]`)

// NewCollector parses an ID of the form "measurementID|clientID|apiSecret".
// Characters outside [A-Za-z0-9-] are stripped from each field.
func NewCollector(id string) (*Collector, error) {
	fields := strings.Split(idFilter.ReplaceAllString(id, ""), "|")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return nil, errors.Errorf("analytics ID must be 'measurementID|clientID|apiSecret'")
	}
	return &Collector{
		Endpoint:      DefaultEndpoint,
		Client:        &http.Client{Timeout: 10 * time.Second},
		measurementID: fields[0],
		clientID:      fields[1],
		apiSecret:     fields[2],
		queue:         make(chan Event, defaultQueueSize),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

func (c *Collector) ReportEvent(category, action, label, value string) {
	select {
	case c.queue <- Event{category, action, label, value}:
	default:
		atomic.AddUint64(&c.dropped, 1)
	}
}

// Pending returns the number of events waiting to be sent.
func (c *Collector) Pending() int {
	return len(c.queue)
}

// Dropped returns the number of events discarded because the queue was full.
func (c *Collector) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// Sent returns the number of events accepted by the endpoint.
func (c *Collector) Sent() uint64 {
	return atomic.LoadUint64(&c.sent)
}

func (c *Collector) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Stop ends the sender goroutine, waiting at most timeout for an in-flight
// post. Pending events are dropped. It reports whether the goroutine exited in
// time.
func (c *Collector) Stop(timeout time.Duration) bool {
	c.stopOnce.Do(func() { close(c.quit) })

	started := true
	c.startOnce.Do(func() { started = false })
	if !started {
		return true
	}

	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		log.Warn("Collector did not stop within %v", timeout)
		return false
	}
}

func (c *Collector) run() {
	defer close(c.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.quit
		cancel()
	}()

	errCount := 0
	backoff := idleBackoff

	for {
		var ev Event
		select {
		case ev = <-c.queue:
		case <-c.quit:
			return
		}

		if err := c.post(ctx, ev); err != nil {
			select {
			case <-c.quit:
				// Stopping: drop rather than retry.
				return
			default:
			}

			log.Debug("Failed to send %s/%s: %v", ev.Category, ev.Action, err)

			// Retry after all newer events. The queue is the only backlog.
			c.requeue(ev)
			errCount++

			if errCount >= maxErrors {
				// Don't hammer the server on continuous failures.
				select {
				case <-time.After(backoff):
				case <-c.quit:
					return
				}
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		atomic.AddUint64(&c.sent, 1)
		errCount = 0
		backoff = idleBackoff
	}
}

// requeue puts a failed event back at the tail of the queue. When the queue
// has filled up in the meantime the oldest pending event is dropped instead.
func (c *Collector) requeue(ev Event) {
	for {
		select {
		case c.queue <- ev:
			return
		default:
		}
		select {
		case <-c.queue:
			atomic.AddUint64(&c.dropped, 1)
		default:
		}
	}
}

type mpPayload struct {
	ClientID string    `json:"client_id"`
	Events   []mpEvent `json:"events"`
}

type mpEvent struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

func (c *Collector) post(ctx context.Context, ev Event) error {
	body, err := json.Marshal(mpPayload{
		ClientID: c.clientID,
		Events: []mpEvent{{
			Name: ev.Action,
			Params: map[string]string{
				"event_category": ev.Category,
				"event_label":    ev.Label,
				"value":          ev.Value,
			},
		}},
	})
	if err != nil {
		return err
	}

	url := c.Endpoint + "?measurement_id=" + c.measurementID + "&api_secret=" + c.apiSecret
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("HTTP %s", resp.Status)
	}
	return nil
}
