package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAndMulti(t *testing.T) {
	var a, b Recorder
	sink := Multi(&a, &b, Discard, LogSink{})

	sink.ReportEvent("cam", "start", "1", "1")
	sink.ReportEvent("cam", "error", "2", "1")

	assert.Len(t, a.Events(), 2)
	assert.Equal(t, a.Events(), b.Events())
	assert.Equal(t, []Event{{"cam", "error", "2", "1"}}, a.Find("cam", "error"))
}

func TestNewCollectorParsesID(t *testing.T) {
	c, err := NewCollector(" G-ABC123 | client-1 | s3cr3t ")
	require.NoError(t, err)
	assert.Equal(t, "G-ABC123", c.measurementID)
	assert.Equal(t, "client-1", c.clientID)
	assert.Equal(t, "s3cr3t", c.apiSecret)

	_, err = NewCollector("G-ABC123")
	assert.Error(t, err)
	_, err = NewCollector("G-ABC123||secret")
	assert.Error(t, err)
}

func TestCollectorPostsEvents(t *testing.T) {
	var mu sync.Mutex
	var got []mpPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "G-1", r.URL.Query().Get("measurement_id"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_secret"))
		var p mpPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))
	defer srv.Close()

	c, err := NewCollector("G-1|cid|secret")
	require.NoError(t, err)
	c.Endpoint = srv.URL
	c.Start()

	c.ReportEvent("camwatch", "max_retired_workers", "", "3")

	assert.Eventually(t, func() bool { return c.Sent() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.Stop(time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "cid", got[0].ClientID)
	assert.Equal(t, "max_retired_workers", got[0].Events[0].Name)
	assert.Equal(t, "camwatch", got[0].Events[0].Params["event_category"])
	assert.Equal(t, "3", got[0].Events[0].Params["value"])
}

func TestCollectorRetriesAfterFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c, err := NewCollector("G-1|cid|secret")
	require.NoError(t, err)
	c.Endpoint = srv.URL
	c.Start()
	defer c.Stop(time.Second)

	c.ReportEvent("cam", "start", "1", "1")
	assert.Eventually(t, func() bool { return c.Sent() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c, err := NewCollector("G-1|cid|secret")
	require.NoError(t, err)

	// Not started, so nothing drains the queue.
	for i := 0; i < defaultQueueSize+5; i++ {
		c.ReportEvent("cam", "start", "1", "1")
	}
	assert.Equal(t, uint64(5), c.Dropped())
	assert.True(t, c.Stop(time.Millisecond))
}

func TestCollectorBacklogBoundedWhileFailing(t *testing.T) {
	var failing int32 = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&failing) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c, err := NewCollector("G-1|cid|secret")
	require.NoError(t, err)
	c.Endpoint = srv.URL
	c.Start()
	defer c.Stop(time.Second)

	const rounds = 4
	total := 0
	for r := 0; r < rounds; r++ {
		for i := 0; i < defaultQueueSize; i++ {
			c.ReportEvent("cam", "error", "1", "1")
			total++
		}
		assert.LessOrEqual(t, c.Pending(), defaultQueueSize)
		// Let at least one post fail and be requeued between rounds.
		time.Sleep(20 * time.Millisecond)
	}

	// Nothing was delivered, so all but the queue and one in-flight post
	// must have been dropped.
	assert.Zero(t, c.Sent())
	assert.GreaterOrEqual(t, c.Dropped(), uint64(total-defaultQueueSize-1))

	atomic.StoreInt32(&failing, 0)
	assert.Eventually(t, func() bool {
		return c.Sent()+c.Dropped() == uint64(total)
	}, 10*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, c.Sent(), uint64(defaultQueueSize+1))
	assert.Zero(t, c.Pending())
}
