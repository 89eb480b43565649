package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/souravmenon1999/ticker-dashboard/internal/exchange"
	"github.com/souravmenon1999/ticker-dashboard/internal/logging"
	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

// DefaultFlashDuration is how long a direction tag stays on the snapshot.
const DefaultFlashDuration = 600 * time.Millisecond

var (
	ErrEmptyTopic = errors.New("ticker: empty topic")
	ErrTopicBound = errors.New("ticker: store is bound to another topic")
)

// State is what watchers receive after every change.
type State struct {
	Topic     string    `json:"topic"`
	Snapshot  Snapshot  `json:"snapshot"`
	Status    Status    `json:"status"`
	Direction Direction `json:"direction"`
	UpdatedAt time.Time `json:"updatedAt"`
	Seq       uint64    `json:"seq"`
}

// Option configures a Store.
type Option func(*Store)

// WithFlashDuration overrides DefaultFlashDuration.
func WithFlashDuration(d time.Duration) Option {
	return func(s *Store) { s.flash = d }
}

// WithScheduler replaces the wall-clock timer source.
func WithScheduler(sched Scheduler) Option {
	return func(s *Store) { s.sched = sched }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

type watcher struct {
	id uint64
	fn func(State)
}

// Store keeps one subscription to a single ticker topic and the merged state
// built from it.
//
// Every event (frame, dial result, read error, flash expiry, Start, Stop) runs
// under evMu, so a frame's merge, direction check and emission never interleave
// with another event. Events carry the epoch of the lifetime that produced
// them; anything from a stopped or replaced lifetime is dropped.
type Store struct {
	dialer exchange.StreamDialer
	sched  Scheduler
	flash  time.Duration
	logger zerolog.Logger

	evMu       sync.Mutex
	topic      string
	live       bool
	epoch      uint64
	conn       exchange.StreamConn
	cancelDial context.CancelFunc
	stopOnDone func() bool
	readerDone chan struct{}
	lastKnown  decimal.NullDecimal // last known price, independent of the emitted snapshot
	flashTimer Timer
	flashGen   uint64
	cur        State

	stateMu sync.RWMutex
	pub     State

	watchMu     sync.Mutex
	watchers    []watcher
	nextWatchID uint64
}

// NewStore creates a stopped store. Its state starts with every field unknown
// and status Connecting.
func NewStore(dialer exchange.StreamDialer, opts ...Option) *Store {
	s := &Store{
		dialer: dialer,
		sched:  realScheduler{},
		flash:  DefaultFlashDuration,
		logger: logging.Component("ticker_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cur = State{Status: StatusConnecting}
	s.pub = s.cur
	return s
}

// State returns the latest emitted state.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.pub
}

// Topic returns the bound topic, empty before the first Start.
func (s *Store) Topic() string {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	return s.topic
}

// Watch registers fn to receive every emitted state, in emission order. fn runs
// while the store holds its event lock: it must not call Start or Stop.
// The returned func unregisters fn.
func (s *Store) Watch(fn func(State)) func() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.nextWatchID++
	id := s.nextWatchID
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})

	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}

// Start opens the connection and subscribes to topic once it is open. It does
// not block on the network. Calling Start while started is a no-op. The first
// Start binds the store to topic for good; a different topic later returns
// ErrTopicBound. Cancelling ctx has the same effect as Stop.
func (s *Store) Start(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	s.evMu.Lock()
	defer s.evMu.Unlock()

	if s.topic != "" && s.topic != topic {
		return fmt.Errorf("%w: bound to %q, asked for %q", ErrTopicBound, s.topic, topic)
	}
	if s.live {
		return nil
	}

	s.topic = topic
	s.live = true
	s.epoch++
	epoch := s.epoch

	dialCtx, cancel := context.WithCancel(context.Background())
	s.cancelDial = cancel
	s.stopOnDone = context.AfterFunc(ctx, func() { s.stopEpoch(epoch) })
	s.readerDone = make(chan struct{})

	s.cur.Topic = topic
	s.cur.Direction = DirectionNone
	s.cur.Status = StatusConnecting
	s.emit()

	s.logger.Info().Str("topic", topic).Msg("Starting ticker stream")
	go s.run(dialCtx, epoch, topic, s.readerDone)
	return nil
}

// Stop disarms the store, cancels the flash timer, unsubscribes (best effort)
// and closes the connection. It returns once the reader goroutine has exited,
// even when another caller already disarmed the store.
// Safe to call any number of times, before or after Start.
func (s *Store) Stop() {
	s.evMu.Lock()
	s.halt()
}

// stopEpoch is Stop for the lifetime that registered it on the Start context.
// It does nothing once that lifetime has been replaced.
func (s *Store) stopEpoch(epoch uint64) {
	s.evMu.Lock()
	if s.epoch != epoch {
		s.evMu.Unlock()
		return
	}
	s.halt()
}

// halt is entered with evMu held and releases it.
func (s *Store) halt() {
	if !s.live {
		done := s.readerDone
		s.evMu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.live = false
	s.epoch++

	if s.stopOnDone != nil {
		s.stopOnDone()
		s.stopOnDone = nil
	}
	s.cancelDial()
	s.cancelFlash()

	if s.conn != nil {
		if err := s.conn.Unsubscribe(s.topic); err != nil {
			s.logger.Debug().Err(err).Str("topic", s.topic).Msg("Unsubscribe on stop failed")
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Close on stop failed")
		}
		s.conn = nil
	}

	s.cur.Direction = DirectionNone
	s.cur.Status = StatusDisconnected
	s.emit()
	done, topic := s.readerDone, s.topic
	s.evMu.Unlock()

	<-done
	s.logger.Info().Str("topic", topic).Msg("Ticker stream stopped")
}

func (s *Store) run(ctx context.Context, epoch uint64, topic string, done chan struct{}) {
	defer close(done)

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.onTransportError(epoch, err)
		return
	}
	if !s.onOpen(epoch, conn, topic) {
		conn.Close()
		return
	}

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if types.HasCode(err, types.ErrTransportClosed) {
				s.onClose(epoch, err)
			} else {
				s.onTransportError(epoch, err)
			}
			conn.Close()
			return
		}
		s.onMessage(epoch, raw)
	}
}

// alive must be called with evMu held.
func (s *Store) alive(epoch uint64) bool {
	return s.live && s.epoch == epoch
}

func (s *Store) onOpen(epoch uint64, conn exchange.StreamConn, topic string) bool {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.alive(epoch) {
		return false
	}

	if err := conn.Subscribe(topic); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Subscribe failed")
		s.setStatus(StatusError)
		return false
	}
	s.conn = conn
	s.setStatus(StatusConnected)
	return true
}

func (s *Store) onTransportError(epoch uint64, err error) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.alive(epoch) {
		return
	}
	s.logger.Warn().Err(err).Str("topic", s.topic).Msg("Ticker stream transport error")
	s.conn = nil
	s.setStatus(StatusError)
}

func (s *Store) onClose(epoch uint64, err error) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.alive(epoch) {
		return
	}
	s.logger.Info().Err(err).Str("topic", s.topic).Msg("Ticker stream closed")
	s.conn = nil
	s.setStatus(StatusDisconnected)
}

func (s *Store) onMessage(epoch uint64, raw []byte) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.alive(epoch) {
		return
	}

	u, err := parseFrame(raw, s.topic)
	switch {
	case err == nil:
	case types.HasCode(err, types.ErrTopicMismatch), errors.Is(err, errNoData):
		return
	case errors.Is(err, errCommandResponse):
		s.logger.Debug().RawJSON("frame", raw).Msg("Command response")
		return
	case types.HasCode(err, types.ErrParse):
		s.logger.Error().Err(err).Bytes("data", raw).Msg("WS parse error")
		return
	default:
		s.logger.Error().Err(err).Msg("Command rejected")
		return
	}
	if u.Empty() {
		return
	}

	s.cur.Snapshot = s.cur.Snapshot.Merge(u)

	next := s.cur.Snapshot.LastPrice
	dir := directionOf(s.lastKnown, next)
	if next.Valid {
		s.lastKnown = next
	}
	if dir != DirectionNone {
		s.cur.Direction = dir
		s.armFlash(epoch)
	}
	s.emit()
}

// armFlash replaces any pending flash reset with a fresh one.
func (s *Store) armFlash(epoch uint64) {
	s.cancelFlash()
	gen := s.flashGen
	s.flashTimer = s.sched.AfterFunc(s.flash, func() {
		s.onFlashExpired(epoch, gen)
	})
}

// cancelFlash stops the pending timer and invalidates its callback in case it
// already fired and is waiting on evMu.
func (s *Store) cancelFlash() {
	if s.flashTimer != nil {
		s.flashTimer.Stop()
		s.flashTimer = nil
	}
	s.flashGen++
}

func (s *Store) onFlashExpired(epoch, gen uint64) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.alive(epoch) || gen != s.flashGen {
		return
	}
	s.flashTimer = nil
	s.cur.Direction = DirectionNone
	s.emit()
}

func (s *Store) setStatus(st Status) {
	s.cur.Status = st
	s.emit()
}

// emit publishes cur and notifies watchers. Called with evMu held.
func (s *Store) emit() {
	s.cur.Seq++
	s.cur.UpdatedAt = time.Now()
	st := s.cur

	s.stateMu.Lock()
	s.pub = st
	s.stateMu.Unlock()

	s.watchMu.Lock()
	ws := make([]watcher, len(s.watchers))
	copy(ws, s.watchers)
	s.watchMu.Unlock()

	for _, w := range ws {
		w.fn(st)
	}
}
