package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel capacity used when none is given.
const DefaultBuffer = 16

// Stream is one broadcast channel of room ids.
type Stream struct {
	name   string
	buffer int

	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan int
	closed  bool
	dropped atomic.Uint64
}

func newStream(name string, buffer int) *Stream {
	return &Stream{
		name:   name,
		buffer: buffer,
		subs:   make(map[uint64]chan int),
	}
}

// Name returns the stream name ("enters" or "exits").
func (s *Stream) Name() string {
	return s.name
}

// Subscribe attaches a new subscriber. The returned cancel function detaches
// it and closes the channel; it is safe to call more than once. Subscribing
// to a closed stream returns an already closed channel.
func (s *Stream) Subscribe() (<-chan int, func()) {
	ch := make(chan int, s.buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish offers roomID to every subscriber without blocking and returns how
// many accepted it.
func (s *Stream) Publish(roomID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, ch := range s.subs {
		select {
		case ch <- roomID:
			delivered++
		default:
			s.dropped.Add(1)
		}
	}
	return delivered
}

// Subscribers returns the number of attached subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Bus holds the enters and exits streams.
type Bus struct {
	enters *Stream
	exits  *Stream
}

// New creates a Bus whose subscriber channels hold buffer events.
// A buffer below 1 uses DefaultBuffer.
func New(buffer int) *Bus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Bus{
		enters: newStream("enters", buffer),
		exits:  newStream("exits", buffer),
	}
}

// Enters returns the stream of rooms that became occupied.
func (b *Bus) Enters() *Stream {
	return b.enters
}

// Exits returns the stream of rooms that became vacant.
func (b *Bus) Exits() *Stream {
	return b.exits
}

// Publish routes roomID to Enters when entered is true, otherwise to Exits.
func (b *Bus) Publish(roomID int, entered bool) int {
	if entered {
		return b.enters.Publish(roomID)
	}
	return b.exits.Publish(roomID)
}

// Close closes every subscriber channel. Later Publish calls deliver to no one.
func (b *Bus) Close() {
	b.enters.close()
	b.exits.close()
}
