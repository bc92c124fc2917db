package viewer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := newBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		s := b.subscribe(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok := <-s
			assert.True(t, ok)
			assert.Equal(t, []byte{0xc0, 0xff, 0xee}, m.data)
		}()
	}

	assert.Zero(t, b.write(message{data: []byte{0xc0, 0xff, 0xee}}))
	wg.Wait()
}

func TestBroadcasterDropsOldest(t *testing.T) {
	b := newBroadcaster()
	s := b.subscribe(2)

	assert.Zero(t, b.write(message{data: []byte{1}}))
	assert.Zero(t, b.write(message{data: []byte{2}}))
	assert.Equal(t, 1, b.write(message{data: []byte{3}}))

	assert.Equal(t, []byte{2}, (<-s).data)
	assert.Equal(t, []byte{3}, (<-s).data)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := newBroadcaster()
	s1 := b.subscribe(1)
	s2 := b.subscribe(1)
	require.Equal(t, 2, b.len())

	b.unsubscribe(s1)
	assert.Equal(t, 1, b.len())
	_, ok := <-s1
	assert.False(t, ok)

	b.write(message{data: []byte{9}})
	assert.Equal(t, []byte{9}, (<-s2).data)
}

func TestBroadcasterClose(t *testing.T) {
	b := newBroadcaster()
	s := b.subscribe(1)
	b.close()
	b.close()

	_, ok := <-s
	assert.False(t, ok)
	assert.Zero(t, b.write(message{data: []byte{1}}))

	_, ok = <-b.subscribe(1)
	assert.False(t, ok)
}
