package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	bus := New(4)
	a, cancelA := bus.Enters().Subscribe()
	defer cancelA()
	b, cancelB := bus.Enters().Subscribe()
	defer cancelB()

	n := bus.Enters().Publish(5)

	assert.Equal(t, 2, n)
	assert.Equal(t, 5, <-a)
	assert.Equal(t, 5, <-b)
}

func TestStreamsAreIndependent(t *testing.T) {
	bus := New(4)
	enters, cancelE := bus.Enters().Subscribe()
	defer cancelE()
	exits, cancelX := bus.Exits().Subscribe()
	defer cancelX()

	bus.Publish(5, false)

	assert.Equal(t, 5, <-exits)
	assert.Empty(t, enters)

	bus.Publish(7, true)
	assert.Equal(t, 7, <-enters)
	assert.Empty(t, exits)
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := New(1)
	assert.Zero(t, bus.Exits().Publish(3))
}

func TestPublish_FullBufferDropsWithoutBlocking(t *testing.T) {
	bus := New(1)
	ch, cancel := bus.Enters().Subscribe()
	defer cancel()

	assert.Equal(t, 1, bus.Enters().Publish(1))
	assert.Equal(t, 0, bus.Enters().Publish(2), "second event must be dropped, not block")
	assert.Equal(t, uint64(1), bus.Enters().Dropped())

	assert.Equal(t, 1, <-ch)
	assert.Empty(t, ch)
}

func TestSubscribe_NoReplay(t *testing.T) {
	bus := New(4)
	bus.Enters().Publish(1)

	ch, cancel := bus.Enters().Subscribe()
	defer cancel()

	assert.Empty(t, ch)
}

func TestCancel(t *testing.T) {
	bus := New(4)
	ch, cancel := bus.Exits().Subscribe()
	require.Equal(t, 1, bus.Exits().Subscribers())

	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, bus.Exits().Subscribers())
	assert.Zero(t, bus.Exits().Publish(1))
}

func TestClose(t *testing.T) {
	bus := New(4)
	ch, cancel := bus.Enters().Subscribe()

	bus.Close()
	_, open := <-ch
	assert.False(t, open)

	cancel() // after close must not panic
	assert.Zero(t, bus.Enters().Publish(1))

	late, _ := bus.Enters().Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing to a closed stream yields a closed channel")
}

func TestConcurrentPublishAndCancel(t *testing.T) {
	bus := New(8)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := bus.Enters().Subscribe()
			for j := 0; j < 50; j++ {
				select {
				case <-ch:
				default:
				}
			}
			cancel()
		}()
	}

	for i := 0; i < 200; i++ {
		bus.Enters().Publish(i)
	}
	wg.Wait()

	assert.Zero(t, bus.Enters().Subscribers())
}

func TestNew_DefaultBuffer(t *testing.T) {
	bus := New(0)
	ch, cancel := bus.Enters().Subscribe()
	defer cancel()
	assert.Equal(t, DefaultBuffer, cap(ch))
	assert.Equal(t, "enters", bus.Enters().Name())
	assert.Equal(t, "exits", bus.Exits().Name())
}
