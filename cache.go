package liverepo

import (
	"context"
	"sync"
)

// Source produces the asynchronous value stream that seeds a cache.
// It is a factory so the underlying stream stays cold until the cache
// actually initializes: a Source supplied to an already-initialized cache is
// never invoked. A nil Source (or a Source returning a nil channel) means
// "no source supplied".
type Source[V any] func() <-chan V

type cacheState int

const (
	stateEmpty cacheState = iota // never initialized
	stateActive
	stateClosed // terminal; never resurrected
)

// Cache shares one latest-value, multicast view of an asynchronous source
// across any number of readers, with lazy initialization.
//
// The first call that supplies a Source subscribes to it exactly once and
// forwards its values into the cache for the cache's whole lifetime; every
// later call reuses that same stream regardless of any Source it supplies.
// A reader attaching after values have been produced immediately receives
// the most recent value, then all subsequent values in order.
//
// When the source stream ends (or Close is called) the cache is closed for
// good: reads permanently answer "no value" and watch channels come back
// already finished. A closed cache does not accept a fresh Source.
type Cache[V any] struct {
	mu      sync.Mutex
	state   cacheState
	latest  V
	has     bool
	subs    []*subscriber[V]
	changed chan struct{} // closed+replaced on every latest-value transition
}

// NewCache returns an uninitialized cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{changed: make(chan struct{})}
}

// Watch returns the cache's multicast output stream, initializing the cache
// from src on first use. The forwarding subscription started here keeps
// running after Watch returns.
//
// If the cache was never initialized and src is nil, or the cache is closed,
// the returned channel is already closed.
func (c *Cache[V]) Watch(src Source[V]) <-chan V {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateClosed:
		return closedChan[V]()
	case stateEmpty:
		if !c.initLocked(src) {
			return closedChan[V]()
		}
	}
	return c.attachLocked()
}

// Latest returns the cache's most recent value, initializing from src the
// same way Watch does. It is the only suspending operation: when no value
// has arrived yet it waits for the first one. ok is false when there is no
// source to initialize from, the cache is closed, or ctx is done first.
func (c *Cache[V]) Latest(ctx context.Context, src Source[V]) (V, bool) {
	var zero V

	c.mu.Lock()
	if c.state == stateEmpty && !c.initLocked(src) {
		c.mu.Unlock()
		return zero, false
	}
	for {
		if c.state == stateClosed {
			c.mu.Unlock()
			return zero, false
		}
		if c.has {
			v := c.latest
			c.mu.Unlock()
			return v, true
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, false
		case <-changed:
		}
		c.mu.Lock()
	}
}

// Peek returns the last value held by the cache without suspending.
// ok is false when the cache was never initialized, holds no value yet,
// or is closed.
func (c *Cache[V]) Peek() (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateActive || !c.has {
		var zero V
		return zero, false
	}
	return c.latest, true
}

// Closed reports whether the cache reached its terminal state.
func (c *Cache[V]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosed
}

// Write publishes v as the new latest value to all attached readers.
// It is gated on the cache already having received a first value through its
// source; before that point Write is a silent no-op, so a value cannot be
// seeded outside the stream protocol.
func (c *Cache[V]) Write(v V) {
	c.mu.Lock()
	if c.state == stateActive && c.has {
		c.deliverLocked(v)
	}
	c.mu.Unlock()
}

// Close terminates the cache. All watch channels finish and every future
// read answers "no value". Closing is permanent. Safe to call more than once.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	var zero V
	c.state = stateClosed
	c.latest, c.has = zero, false
	subs := c.subs
	c.subs = nil
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// init initializes the cache from src unless it already left the empty
// state. Reports whether the cache is (now) initialized.
func (c *Cache[V]) init(src Source[V]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateEmpty {
		return true
	}
	return c.initLocked(src)
}

// initLocked starts forwarding from src. Reports false when src yields no
// stream, leaving the cache uninitialized.
func (c *Cache[V]) initLocked(src Source[V]) bool {
	if src == nil {
		return false
	}
	ch := src()
	if ch == nil {
		return false
	}
	c.state = stateActive
	go c.forward(ch)
	return true
}

// forward pumps the source stream into the cache until the stream ends,
// then closes the cache.
func (c *Cache[V]) forward(ch <-chan V) {
	for v := range ch {
		c.mu.Lock()
		if c.state == stateActive {
			c.deliverLocked(v)
		}
		c.mu.Unlock()
	}
	c.Close()
}

func (c *Cache[V]) deliverLocked(v V) {
	c.latest, c.has = v, true
	close(c.changed)
	c.changed = make(chan struct{})
	for _, s := range c.subs {
		s.send(v)
	}
}

func (c *Cache[V]) attachLocked() <-chan V {
	s := newSubscriber[V]()
	if c.has {
		s.send(c.latest) // replay-latest
	}
	c.subs = append(c.subs, s)
	return s.out
}

// subscriber is one reader's view of the multicast stream. Values queue
// without bound so a slow reader never blocks the publisher or its siblings;
// a dedicated goroutine drains the queue into out in FIFO order. Readers are
// expected to live as long as the cache that owns them.
type subscriber[V any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []V
	closed bool
	out    chan V
}

func newSubscriber[V any]() *subscriber[V] {
	s := &subscriber[V]{out: make(chan V)}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *subscriber[V]) send(v V) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, v)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber[V]) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// run delivers queued values in order, then closes out once the queue is
// drained after close.
func (s *subscriber[V]) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.out)
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.out <- v
	}
}

func closedChan[V any]() <-chan V {
	ch := make(chan V)
	close(ch)
	return ch
}
