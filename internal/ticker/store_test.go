package ticker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

const testTopic = "tickers.BTCUSDT"

func newTestStore(t *testing.T) (*Store, *fakeDialer, *manualScheduler) {
	t.Helper()
	d := &fakeDialer{}
	sched := &manualScheduler{}
	s := NewStore(d, WithScheduler(sched), WithLogger(zerolog.Nop()))
	t.Cleanup(s.Stop)
	return s, d, sched
}

func waitStatus(t *testing.T, s *Store, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State().Status == want },
		2*time.Second, time.Millisecond, "status never became %s", want)
}

func startConnected(t *testing.T, s *Store, d *fakeDialer) *fakeConn {
	t.Helper()
	require.NoError(t, s.Start(context.Background(), testTopic))
	waitStatus(t, s, StatusConnected)
	return d.last()
}

func currentEpoch(s *Store) uint64 {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	return s.epoch
}

// feed runs raw through the live lifetime on the calling goroutine.
func feed(s *Store, raw string) {
	s.onMessage(currentEpoch(s), []byte(raw))
}

func frame(data string) string {
	return `{"topic":"tickers.BTCUSDT","type":"delta","ts":1700000000000,"data":` + data + `}`
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertField(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "field should be known")
	assert.True(t, dec(want).Equal(got.Decimal), "want %s, got %s", want, got.Decimal)
}

func TestNewStoreInitialState(t *testing.T) {
	s, _, _ := newTestStore(t)

	st := s.State()
	assert.Equal(t, StatusConnecting, st.Status)
	assert.Equal(t, DirectionNone, st.Direction)
	assert.Equal(t, Snapshot{}, st.Snapshot)
	assert.Equal(t, "", s.Topic())
}

func TestStartSubscribesOnOpen(t *testing.T) {
	s, d, _ := newTestStore(t)
	conn := startConnected(t, s, d)

	subs, _ := conn.subs()
	assert.Equal(t, []string{testTopic}, subs)
	assert.Equal(t, testTopic, s.Topic())
	assert.Equal(t, testTopic, s.State().Topic)
}

func TestStartIsIdempotent(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	require.NoError(t, s.Start(context.Background(), testTopic))
	assert.Equal(t, 1, d.dialCount())
}

func TestStartRejectsOtherTopic(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	err := s.Start(context.Background(), "tickers.ETHUSDT")
	assert.ErrorIs(t, err, ErrTopicBound)

	s.Stop()
	err = s.Start(context.Background(), "tickers.ETHUSDT")
	assert.ErrorIs(t, err, ErrTopicBound, "binding survives Stop")

	assert.ErrorIs(t, s.Start(context.Background(), ""), ErrEmptyTopic)
}

func TestPartialUpdateKeepsKnownFields(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100","highPrice24h":"120","lowPrice24h":"90"}`))
	feed(s, frame(`{"markPrice":"101"}`))

	snap := s.State().Snapshot
	assertField(t, "100", snap.LastPrice)
	assertField(t, "101", snap.MarkPrice)
	assertField(t, "120", snap.High24h)
	assertField(t, "90", snap.Low24h)
	assert.False(t, snap.Turnover24h.Valid)
	assert.False(t, snap.Price24hPcnt.Valid)
}

func TestUnparseableFieldIsSkipped(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100","turnover24h":"5000"}`))
	feed(s, frame(`{"lastPrice":"abc","turnover24h":"","markPrice":99.5}`))

	snap := s.State().Snapshot
	assertField(t, "100", snap.LastPrice)
	assertField(t, "5000", snap.Turnover24h)
	assertField(t, "99.5", snap.MarkPrice)
}

func TestPrice24hPcntIsScaled(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"price24hPcnt":"0.0123"}`))
	assertField(t, "1.23", s.State().Snapshot.Price24hPcnt)

	feed(s, frame(`{"price24hPcnt":"-0.005"}`))
	assertField(t, "-0.5", s.State().Snapshot.Price24hPcnt)
}

func TestDirectionDetection(t *testing.T) {
	s, d, sched := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	assert.Equal(t, DirectionNone, s.State().Direction, "first price has nothing to compare to")
	assert.Equal(t, 0, sched.count())

	feed(s, frame(`{"lastPrice":"105"}`))
	assert.Equal(t, DirectionUp, s.State().Direction)
	assert.Equal(t, 1, sched.count())

	sched.fire()
	assert.Equal(t, DirectionNone, s.State().Direction)

	feed(s, frame(`{"lastPrice":"105"}`))
	assert.Equal(t, DirectionNone, s.State().Direction, "unchanged price emits no event")
	assert.Equal(t, 1, sched.count(), "no new flash timer")

	feed(s, frame(`{"lastPrice":"99"}`))
	assert.Equal(t, DirectionDown, s.State().Direction)
	assert.Equal(t, 2, sched.count())
}

func TestFieldOnlyUpdateKeepsLastKnownPrice(t *testing.T) {
	s, d, _ := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"markPrice":"100.5"}`))
	feed(s, frame(`{"lastPrice":"101"}`))

	assert.Equal(t, DirectionUp, s.State().Direction)
}

func TestFlashAutoClears(t *testing.T) {
	s, d, sched := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"lastPrice":"101"}`))
	require.Equal(t, 1, sched.pending())
	assert.Equal(t, DefaultFlashDuration, sched.timers[0].d)

	sched.fire()
	assert.Equal(t, DirectionNone, s.State().Direction)
	assert.Equal(t, 0, sched.pending())
	assertField(t, "101", s.State().Snapshot.LastPrice)
}

func TestNewEventRestartsFlashWindow(t *testing.T) {
	s, d, sched := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"lastPrice":"101"}`))
	feed(s, frame(`{"lastPrice":"100.5"}`))

	assert.Equal(t, DirectionDown, s.State().Direction)
	assert.Equal(t, 1, sched.pending(), "only one reset timer is live")

	// the replaced timer firing late must not clear the newer flash
	sched.fireStopped()
	assert.Equal(t, DirectionDown, s.State().Direction)

	sched.fire()
	assert.Equal(t, DirectionNone, s.State().Direction)
}

func TestIgnoredFramesLeaveStateUnchanged(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `not json at all`},
		{name: "truncated", raw: `{"topic":"tickers.BTCUSDT","data":{"lastPrice":`},
		{name: "other topic", raw: `{"topic":"tickers.ETHUSDT","data":{"lastPrice":"1"}}`},
		{name: "no topic", raw: `{"data":{"lastPrice":"1"}}`},
		{name: "subscribe ack", raw: `{"success":true,"ret_msg":"","op":"subscribe","conn_id":"x"}`},
		{name: "subscribe nack", raw: `{"success":false,"ret_msg":"error:handler not found","op":"subscribe"}`},
		{name: "pong", raw: `{"success":true,"ret_msg":"pong","op":"ping"}`},
		{name: "null data", raw: `{"topic":"tickers.BTCUSDT","data":null}`},
		{name: "data not an object", raw: `{"topic":"tickers.BTCUSDT","data":"x"}`},
		{name: "no known fields", raw: frame(`{"volume24h":"12"}`)},
		{name: "all fields unparseable", raw: frame(`{"lastPrice":"n/a","markPrice":""}`)},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			s, d, sched := newTestStore(t)
			startConnected(t, s, d)
			feed(s, frame(`{"lastPrice":"100","markPrice":"100"}`))
			before := s.State()

			assert.NotPanics(t, func() { feed(s, tt.raw) })

			assert.Equal(t, before, s.State())
			assert.Equal(t, 0, sched.count())
		})
	}
}

func TestStopBeforeStartAndTwice(t *testing.T) {
	s, _, sched := newTestStore(t)

	assert.NotPanics(t, s.Stop)
	assert.NotPanics(t, s.Stop)
	assert.Equal(t, StatusConnecting, s.State().Status, "never started, nothing to tear down")
	assert.Equal(t, 0, sched.pending())
}

func TestStopTearsDown(t *testing.T) {
	s, d, sched := newTestStore(t)
	conn := startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"lastPrice":"101"}`))
	require.Equal(t, 1, sched.pending())

	s.Stop()
	s.Stop()

	st := s.State()
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Equal(t, DirectionNone, st.Direction)
	assert.Equal(t, 0, sched.pending())
	assert.True(t, conn.isClosed())

	_, unsubs := conn.subs()
	assert.Equal(t, []string{testTopic}, unsubs)
	assertField(t, "101", st.Snapshot.LastPrice)
}

func TestLateEventsAfterStopAreIgnored(t *testing.T) {
	s, d, sched := newTestStore(t)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"lastPrice":"101"}`))
	epoch := currentEpoch(s)

	s.Stop()
	after := s.State()

	s.onMessage(epoch, []byte(frame(`{"lastPrice":"150"}`)))
	s.onTransportError(epoch, types.NewTransportError("late", nil))
	s.onClose(epoch, nil)
	sched.fireStopped()

	assert.Equal(t, after, s.State())
}

func TestRestartAfterStop(t *testing.T) {
	s, d, _ := newTestStore(t)
	first := startConnected(t, s, d)
	feed(s, frame(`{"lastPrice":"100"}`))
	oldEpoch := currentEpoch(s)

	s.Stop()
	second := startConnected(t, s, d)
	require.NotSame(t, first, second)
	assert.Equal(t, 2, d.dialCount())

	// frames from the previous lifetime are dropped
	s.onMessage(oldEpoch, []byte(frame(`{"lastPrice":"1"}`)))
	assertField(t, "100", s.State().Snapshot.LastPrice)

	feed(s, frame(`{"lastPrice":"102"}`))
	assert.Equal(t, DirectionUp, s.State().Direction)
}

func TestDialFailureSetsError(t *testing.T) {
	s, d, _ := newTestStore(t)
	d.err = types.NewTransportError("dial", nil)

	require.NoError(t, s.Start(context.Background(), testTopic))
	waitStatus(t, s, StatusError)

	require.NoError(t, s.Start(context.Background(), testTopic))
	assert.Equal(t, 1, d.dialCount(), "no automatic reconnect, Start stays a no-op until Stop")

	s.Stop()
	assert.Equal(t, StatusDisconnected, s.State().Status)
}

func TestSubscribeFailureSetsError(t *testing.T) {
	s, d, _ := newTestStore(t)
	d.subscribeErr = types.NewTransportError("write subscribe", nil)

	require.NoError(t, s.Start(context.Background(), testTopic))
	waitStatus(t, s, StatusError)
	require.Eventually(t, func() bool { return d.last() != nil && d.last().isClosed() }, time.Second, time.Millisecond)
}

func TestReadErrorSetsError(t *testing.T) {
	s, d, _ := newTestStore(t)
	conn := startConnected(t, s, d)

	conn.readErr <- types.NewTransportError("read", nil)
	waitStatus(t, s, StatusError)
	assert.Eventually(t, conn.isClosed, time.Second, time.Millisecond)
}

func TestRemoteCloseSetsDisconnected(t *testing.T) {
	s, d, _ := newTestStore(t)
	conn := startConnected(t, s, d)

	conn.readErr <- types.NewTransportClosed(nil)
	waitStatus(t, s, StatusDisconnected)
}

func TestStopWhileDialing(t *testing.T) {
	s, d, _ := newTestStore(t)
	d.block = true

	require.NoError(t, s.Start(context.Background(), testTopic))

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while dial was pending")
	}
	assert.Equal(t, StatusDisconnected, s.State().Status)
}

func TestContextCancelStops(t *testing.T) {
	s, d, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx, testTopic))
	waitStatus(t, s, StatusConnected)
	conn := d.last()

	cancel()
	waitStatus(t, s, StatusDisconnected)
	assert.Eventually(t, conn.isClosed, time.Second, time.Millisecond)
}

func TestStopAfterContextCancelWaitsForReader(t *testing.T) {
	s, d, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx, testTopic))
	waitStatus(t, s, StatusConnected)
	conn := d.last()
	s.evMu.Lock()
	done := s.readerDone
	s.evMu.Unlock()

	cancel()
	waitStatus(t, s, StatusDisconnected)

	// the store is already disarmed; Stop still joins the reader
	s.Stop()
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the reader goroutine exited")
	}
	assert.True(t, conn.isClosed())
}

func TestStaleContextStopKeepsRestartedStream(t *testing.T) {
	s, d, _ := newTestStore(t)
	first := startConnected(t, s, d)
	oldEpoch := currentEpoch(s)

	s.Stop()
	second := startConnected(t, s, d)

	s.stopEpoch(oldEpoch)
	assert.Equal(t, StatusConnected, s.State().Status)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	feed(s, frame(`{"lastPrice":"100"}`))
	assertField(t, "100", s.State().Snapshot.LastPrice)
}

func TestFramesFromReadLoop(t *testing.T) {
	s, d, _ := newTestStore(t)
	conn := startConnected(t, s, d)

	conn.frames <- []byte(frame(`{"lastPrice":"64000.5","price24hPcnt":"0.01"}`))
	conn.frames <- []byte(`garbage`)
	conn.frames <- []byte(frame(`{"markPrice":"64001"}`))

	require.Eventually(t, func() bool { return s.State().Snapshot.MarkPrice.Valid }, time.Second, time.Millisecond)
	snap := s.State().Snapshot
	assertField(t, "64000.5", snap.LastPrice)
	assertField(t, "1", snap.Price24hPcnt)
}

func TestWatchersSeeOrderedStates(t *testing.T) {
	s, d, sched := newTestStore(t)

	var mu sync.Mutex
	var seen []State
	cancel := s.Watch(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	startConnected(t, s, d)
	feed(s, frame(`{"lastPrice":"100"}`))
	feed(s, frame(`{"lastPrice":"101"}`))
	sched.fire()
	cancel()
	feed(s, frame(`{"lastPrice":"102"}`))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
	wantStatus := []Status{StatusConnecting, StatusConnected, StatusConnected, StatusConnected, StatusConnected}
	wantDir := []Direction{DirectionNone, DirectionNone, DirectionNone, DirectionUp, DirectionNone}
	for i, st := range seen {
		assert.Equal(t, wantStatus[i], st.Status, "state %d", i)
		assert.Equal(t, wantDir[i], st.Direction, "state %d", i)
		if i > 0 {
			assert.Equal(t, seen[i-1].Seq+1, st.Seq)
		}
	}
}

func TestWithFlashDuration(t *testing.T) {
	d := &fakeDialer{}
	sched := &manualScheduler{}
	s := NewStore(d, WithScheduler(sched), WithFlashDuration(250*time.Millisecond), WithLogger(zerolog.Nop()))
	t.Cleanup(s.Stop)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"1"}`))
	feed(s, frame(`{"lastPrice":"2"}`))
	require.Equal(t, 1, sched.count())
	assert.Equal(t, 250*time.Millisecond, sched.timers[0].d)
}

func TestRealTimerClearsFlash(t *testing.T) {
	d := &fakeDialer{}
	s := NewStore(d, WithFlashDuration(20*time.Millisecond), WithLogger(zerolog.Nop()))
	t.Cleanup(s.Stop)
	startConnected(t, s, d)

	feed(s, frame(`{"lastPrice":"1"}`))
	feed(s, frame(`{"lastPrice":"0.5"}`))
	assert.Equal(t, DirectionDown, s.State().Direction)
	assert.Eventually(t, func() bool { return s.State().Direction == DirectionNone }, time.Second, 5*time.Millisecond)
}
