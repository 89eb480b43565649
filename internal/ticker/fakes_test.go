package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/souravmenon1999/ticker-dashboard/internal/exchange"
	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

// fakeConn delivers frames pushed on frames until closed.
type fakeConn struct {
	frames  chan []byte
	readErr chan error
	closed  chan struct{}
	once    sync.Once

	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	subscribeErr error
	closeCalls   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 64),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subscribed = append(c.subscribed, topic)
	return nil
}

func (c *fakeConn) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topic)
	return nil
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.readErr:
		return nil, err
	case <-c.closed:
		return nil, types.NewTransportClosed(nil)
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) subs() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...), append([]string(nil), c.unsubscribed...)
}

// fakeDialer hands out conn, or fails with err. If block is set, Dial waits
// for the context instead.
type fakeDialer struct {
	mu           sync.Mutex
	conns        []*fakeConn
	err          error
	subscribeErr error
	block        bool
	dials        int
}

func (d *fakeDialer) Dial(ctx context.Context) (exchange.StreamConn, error) {
	d.mu.Lock()
	d.dials++
	block, err := d.block, d.err
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, types.NewTransportError("dial", ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.mu.Lock()
	c.subscribeErr = d.subscribeErr
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// manualScheduler only fires timers when told to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	m       *manualScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{m: m, d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// pending counts timers that are neither stopped nor fired.
func (m *manualScheduler) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs every pending timer on the calling goroutine.
func (m *manualScheduler) fire() {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// fireStopped runs the callbacks of cancelled timers, as if each had fired
// just before Stop reached it.
func (m *manualScheduler) fireStopped() {
	m.mu.Lock()
	var stale []*manualTimer
	for _, t := range m.timers {
		if t.stopped {
			stale = append(stale, t)
		}
	}
	m.mu.Unlock()
	for _, t := range stale {
		t.f()
	}
}

func (m *manualScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
