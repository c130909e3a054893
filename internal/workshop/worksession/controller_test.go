package worksession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore is an in-memory appointment store.
type fakeStore struct {
	mu        sync.Mutex
	order     Order
	elapsed   int64
	calls     []Action
	fetches   int
	worktimes int
	failWith  map[Action]error
	fetchErr  error
}

func newFakeStore(o Order, elapsed int64) *fakeStore {
	return &fakeStore{order: o, elapsed: elapsed, failWith: map[Action]error{}}
}

func (s *fakeStore) Fetch(_ context.Context, _ string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	o := s.order
	o.ElapsedSeconds = s.elapsed
	o.ExtraServices = append([]ExtraService(nil), s.order.ExtraServices...)
	return &o, nil
}

func (s *fakeStore) record(a Action, mutate func(o *Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, a)
	if err := s.failWith[a]; err != nil {
		return err
	}
	mutate(&s.order)
	return nil
}

func (s *fakeStore) Start(_ context.Context, _ string) error {
	return s.record(ActionStart, func(o *Order) {
		now := time.Now()
		o.StartTime = &now
		o.IsPaused = false
		o.Status = "In Repair"
	})
}

func (s *fakeStore) Pause(_ context.Context, _ string) error {
	return s.record(ActionPause, func(o *Order) { o.IsPaused = true })
}

func (s *fakeStore) Resume(_ context.Context, _ string) error {
	return s.record(ActionResume, func(o *Order) { o.IsPaused = false })
}

func (s *fakeStore) Finalize(_ context.Context, _ string) error {
	return s.record(ActionFinalize, func(o *Order) { o.Status = "Finalized" })
}

func (s *fakeStore) WorkTime(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worktimes++
	return s.elapsed, nil
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeStore) stats() (calls []Action, fetches, worktimes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.calls...), s.fetches, s.worktimes
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *recordingNotifier) Notify(item Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

// openController opens a controller on a fake clock. Loops that the test does
// not exercise get an interval that never elapses.
func openController(t *testing.T, store Store, opts ...Option) (*Controller, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	base := []Option{
		WithClock(clockwork.NewFakeClock()),
		WithNotifier(notifier),
		WithTickInterval(time.Hour),
		WithPollInterval(time.Hour),
	}
	c := NewController(store, "os-1", append(base, opts...)...)
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c, notifier
}

func TestController_StartPendingOrder(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "Pendente"}, 0)
	c, notifier := openController(t, store)

	snap := c.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Equal(t, NotStarted, snap.State)
	assert.True(t, snap.Controls.Start)

	require.NoError(t, c.Start(context.Background()))

	calls, fetches, _ := store.stats()
	assert.Equal(t, []Action{ActionStart}, calls)
	assert.Equal(t, 2, fetches, "start must be followed by a fetch")

	snap = c.Snapshot()
	assert.Equal(t, "Em Andamento", string(snap.Status))
	assert.Equal(t, Running, snap.State)
	assert.Equal(t, int64(0), snap.Elapsed)
	assert.Equal(t, "00:00:00", snap.Clock)
	assert.False(t, snap.Submitting)
	assert.True(t, c.counter.Running())
	assert.Empty(t, notifier.all())
}

func TestController_StartRefusedWhenRunning(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 30)
	c, _ := openController(t, store)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrActionUnavailable)

	calls, _, _ := store.stats()
	assert.Empty(t, calls)
}

func TestController_PauseFreezesClockAndRelabels(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 42)
	c, _ := openController(t, store)
	assert.Equal(t, "Start", c.Snapshot().Controls.PrimaryLabel())

	require.NoError(t, c.Pause(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, Paused, snap.State)
	assert.Equal(t, int64(42), snap.Elapsed)
	assert.Equal(t, "Resume", snap.Controls.PrimaryLabel())
	assert.True(t, snap.Controls.Resume)
	assert.False(t, c.counter.Running())

	_, _, worktimes := store.stats()
	assert.Equal(t, 1, worktimes, "pause resyncs the timer")

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, Running, c.Snapshot().State)
	assert.True(t, c.counter.Running())
}

func TestController_FinalizeBlockedByPendingExtra(t *testing.T) {
	store := newFakeStore(Order{
		ID:            "os-1",
		Status:        "In Repair",
		StartTime:     started(),
		IsPaused:      true,
		ExtraServices: []ExtraService{{ID: "x1", State: ExtraPending}},
	}, 100)
	c, _ := openController(t, store)

	assert.False(t, c.Snapshot().Controls.Finalize)
	err := c.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrActionUnavailable)

	calls, fetches, _ := store.stats()
	assert.Empty(t, calls, "no network call for a disabled control")
	assert.Equal(t, 1, fetches)
}

func TestController_FinalizeRunningOrder(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 3600)
	c, _ := openController(t, store)

	require.NoError(t, c.Finalize(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, Finalized, snap.State)
	assert.Equal(t, "Concluída", string(snap.Status))
	assert.Equal(t, "01:00:00", snap.Clock)
	assert.False(t, snap.Controls.Start || snap.Controls.Pause || snap.Controls.Resume || snap.Controls.Finalize)
	assert.ErrorIs(t, c.Start(context.Background()), ErrActionUnavailable)
}

func TestController_FailedActionNotifiesAndReconciles(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 10)
	boom := errors.New("503 service unavailable")
	store.set(func(s *fakeStore) { s.failWith[ActionPause] = boom })
	c, notifier := openController(t, store)

	err := c.Pause(context.Background())
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ActionPause, aerr.Action)
	assert.ErrorIs(t, err, boom)

	items := notifier.all()
	require.Len(t, items, 1)
	assert.Equal(t, ActionPause, items[0].Action)
	assert.Contains(t, items[0].Message(), "pause")

	_, fetches, _ := store.stats()
	assert.Equal(t, 2, fetches, "failure is followed by a reconcile fetch")

	snap := c.Snapshot()
	assert.Equal(t, Running, snap.State)
	assert.False(t, snap.Submitting)
	assert.True(t, snap.Controls.Pause, "control is re-enabled")
}

func TestController_RefetchFailureAfterActionReportedOnce(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 10)
	c, notifier := openController(t, store)

	lost := errors.New("connection reset")
	store.set(func(s *fakeStore) { s.fetchErr = lost })

	err := c.Pause(context.Background())
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ActionPause, aerr.Action)
	assert.ErrorIs(t, err, lost)

	calls, _, _ := store.stats()
	assert.Equal(t, []Action{ActionPause}, calls)
	assert.Len(t, notifier.all(), 1)
	assert.False(t, c.Snapshot().Submitting)
}

func TestController_RefreshOverwritesLocalCounter(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 5)
	c, _ := openController(t, store)

	c.counter.Tick()
	c.counter.Tick()
	assert.Equal(t, int64(7), c.Snapshot().Elapsed)

	store.set(func(s *fakeStore) { s.elapsed = 3 })
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, int64(3), c.Snapshot().Elapsed)
}

func TestController_TicksOncePerSecondWhileRunning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 5)
	c, _ := openController(t, store, WithClock(clock), WithTickInterval(time.Second))
	clock.BlockUntil(2)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return c.Snapshot().Elapsed == 6 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return c.Snapshot().Elapsed == 7 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "00:00:07", c.Snapshot().Clock)
}

func TestController_HoldsWhilePaused(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started(), IsPaused: true}, 9)
	c, _ := openController(t, store, WithClock(clock), WithTickInterval(time.Second))
	clock.BlockUntil(2)

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return c.Snapshot().Elapsed != 9 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestController_PollReconcilesWithServer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 20)
	c, notifier := openController(t, store, WithClock(clock), WithPollInterval(10*time.Second))
	clock.BlockUntil(2)

	// another operator pauses the order
	store.set(func(s *fakeStore) {
		s.order.IsPaused = true
		s.elapsed = 100
	})
	clock.Advance(10 * time.Second)

	assert.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.State == Paused && snap.Elapsed == 100
	}, time.Second, 5*time.Millisecond)
	assert.False(t, c.Snapshot().Loading, "poll is silent")
	assert.Empty(t, notifier.all())
}

func TestController_PollErrorsAreNotSurfaced(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 20)
	c, notifier := openController(t, store, WithClock(clock), WithPollInterval(10*time.Second))
	clock.BlockUntil(2)

	store.set(func(s *fakeStore) { s.fetchErr = errors.New("connection refused") })
	clock.Advance(10 * time.Second)

	assert.Eventually(t, func() bool {
		_, fetches, _ := store.stats()
		return fetches == 2
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, notifier.all())
	assert.Equal(t, Running, c.Snapshot().State)
}

func TestController_OpenFailsWhenInitialFetchFails(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1"}, 0)
	store.set(func(s *fakeStore) { s.fetchErr = errors.New("404") })

	c := NewController(store, "os-1", WithClock(clockwork.NewFakeClock()))
	err := c.Open(context.Background())
	require.Error(t, err)
	assert.False(t, c.Snapshot().Loaded)
	assert.NoError(t, c.Close())
}

func TestController_CloseStopsLoops(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 0)
	c := NewController(store, "os-1", WithClock(clockwork.NewFakeClock()))
	require.NoError(t, c.Open(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Pause(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Open(context.Background()), ErrClosed)
}

func TestController_NonPositiveIntervalsUseDefaults(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "In Repair", StartTime: started()}, 0)
	clock := clockwork.NewFakeClock()
	c := NewController(store, "os-1",
		WithClock(clock),
		WithPollInterval(0),
		WithTickInterval(-time.Second),
	)
	assert.Equal(t, DefaultPollInterval, c.pollInterval)
	assert.Equal(t, DefaultTickInterval, c.tickInterval)

	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	clock.BlockUntil(2)
	clock.Advance(DefaultPollInterval)
	assert.Eventually(t, func() bool {
		_, fetches, _ := store.stats()
		return fetches == 2
	}, time.Second, 10*time.Millisecond)
}

func TestController_ObserverSeesSubmitting(t *testing.T) {
	store := newFakeStore(Order{ID: "os-1", Status: "Pendente"}, 0)

	var mu sync.Mutex
	var sawSubmitting bool
	observer := func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Submitting {
			sawSubmitting = true
			assert.False(t, s.Controls.Start, "controls are disabled while submitting")
		}
	}
	c, _ := openController(t, store, WithObserver(observer))

	require.NoError(t, c.Do(context.Background(), ActionStart))
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawSubmitting)
}
