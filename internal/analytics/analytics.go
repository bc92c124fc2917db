// Package analytics reports fire-and-forget usage and health events.
package analytics

import (
	"sync"

	"github.com/lanikai/camwatch/internal/logging"
)

var log = logging.DefaultLogger.WithTag("analytics")

// A Sink accepts events. ReportEvent must not block the caller for long and
// never fails from the caller's point of view.
type Sink interface {
	ReportEvent(category, action, label, value string)
}

// Event is one reported event.
type Event struct {
	Category string
	Action   string
	Label    string
	Value    string
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) ReportEvent(category, action, label, value string) {}

// LogSink writes events to the log at Debug level.
type LogSink struct{}

func (LogSink) ReportEvent(category, action, label, value string) {
	log.Debug("event %s/%s label=%q value=%q", category, action, label, value)
}

// Multi fans events out to several sinks.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) ReportEvent(category, action, label, value string) {
	for _, s := range m {
		s.ReportEvent(category, action, label, value)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) ReportEvent(category, action, label, value string) {
	r.mu.Lock()
	r.events = append(r.events, Event{category, action, label, value})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Find returns the recorded events with the given category and action.
func (r *Recorder) Find(category, action string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Category == category && e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
