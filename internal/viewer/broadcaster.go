//////////////////////////////////////////////////////////////////////////////
//
// Broadcast messages from one writer to multiple subscribers.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package viewer

import (
	"sync"
)

type message struct {
	binary bool
	data   []byte
}

// broadcaster fans messages out to subscribers. Each subscriber has its own
// buffered queue; once a queue is full the oldest message is dropped to make
// room, so a slow client never holds up the writer.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan message]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan message]struct{})}
}

// subscribe returns a queue holding up to n messages. After close it returns
// an already closed channel.
func (b *broadcaster) subscribe(n int) <-chan message {
	if n < 1 {
		panic("broadcaster: malformed buffer size")
	}
	ch := make(chan message, n)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

func (b *broadcaster) unsubscribe(s <-chan message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		if ch == s {
			delete(b.subs, ch)
			close(ch)
			return
		}
	}
}

// write queues m for every subscriber and returns how many older messages
// were dropped along the way.
func (b *broadcaster) write(m message) (dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- m:
			continue
		default:
		}
		// Backlogged: drop the oldest, add the newest.
		select {
		case <-ch:
			dropped++
		default:
		}
		select {
		case ch <- m:
		default:
		}
	}
	return dropped
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// close ends every subscription. Later writes go nowhere.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
