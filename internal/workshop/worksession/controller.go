package worksession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitfantasy/oficina/internal/metrics"
	"github.com/bitfantasy/oficina/internal/workshop/status"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultTickInterval = time.Second
)

// Store is the remote appointment store the session reads and mutates.
type Store interface {
	Fetch(ctx context.Context, orderID string) (*Order, error)
	Start(ctx context.Context, orderID string) error
	Pause(ctx context.Context, orderID string) error
	Resume(ctx context.Context, orderID string) error
	Finalize(ctx context.Context, orderID string) error
	WorkTime(ctx context.Context, orderID string) (int64, error)
}

// Notification is a non-blocking, user-facing error report.
type Notification struct {
	Action Action
	Err    error
}

func (n Notification) Message() string {
	return fmt.Sprintf("Failed to %s work session: %v", n.Action, n.Err)
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Snapshot is the rendered view state of a session.
type Snapshot struct {
	OrderID    string           `json:"order_id"`
	RawStatus  string           `json:"raw_status"`
	Status     status.Canonical `json:"status"`
	State      State            `json:"state"`
	Elapsed    int64            `json:"elapsed_seconds"`
	Clock      string           `json:"clock"`
	Loaded     bool             `json:"loaded"`
	Loading    bool             `json:"loading"`
	Submitting bool             `json:"submitting"`
	Controls   Controls         `json:"controls"`
}

type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithPollInterval sets the reconciliation interval. Non-positive values keep
// DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTickInterval sets the local clock tick. Non-positive values keep
// DefaultTickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithMetrics counts polls and actions. A nil value disables counting.
func WithMetrics(m *metrics.Session) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithObserver registers a callback invoked after every view change. It may be
// called from the tick and poll goroutines concurrently.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// Controller owns the session view of one order: the current order, the
// local work clock, the 1s tick and the reconciliation poll.
type Controller struct {
	store        Store
	orderID      string
	clock        clockwork.Clock
	logger       *zap.Logger
	notifier     Notifier
	pollInterval time.Duration
	tickInterval time.Duration
	observers    []func(Snapshot)
	metrics      *metrics.Session

	counter Counter

	mu         sync.Mutex
	order      *Order
	loading    bool
	submitting bool
	opened     bool
	closed     bool
	cancel     context.CancelFunc
	group      *errgroup.Group
}

func NewController(store Store, orderID string, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		orderID:      orderID,
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(n Notification) {
			c.logger.Warn(n.Message(), zap.String("order_id", c.orderID))
		})
	}
	return c
}

// Open performs the initial visible fetch and starts the tick and poll loops.
// The loops run until Close is called or ctx is cancelled.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return nil
	}
	c.opened = true
	c.mu.Unlock()

	if err := c.fetch(ctx, false); err != nil {
		c.mu.Lock()
		c.opened = false
		c.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.cancel = cancel
	c.group = g
	c.mu.Unlock()

	g.Go(func() error {
		c.tickLoop(gctx)
		return nil
	})
	g.Go(func() error {
		c.pollLoop(gctx)
		return nil
	})

	c.logger.Debug("work session opened",
		zap.String("order_id", c.orderID),
		zap.Duration("poll_interval", c.pollInterval),
	)
	return nil
}

// Close stops both loops and waits for them to exit. In-flight store calls
// issued by actions are not aborted.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, g := c.cancel, c.group
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := g.Wait()
	c.logger.Debug("work session closed", zap.String("order_id", c.orderID))
	return err
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	seconds := c.counter.Seconds()
	snap := Snapshot{
		OrderID:    c.orderID,
		Elapsed:    seconds,
		Clock:      FormatClock(seconds),
		Loading:    c.loading,
		Submitting: c.submitting,
		Controls:   EvaluateControls(c.order, c.submitting),
	}
	if c.order != nil {
		snap.Loaded = true
		snap.RawStatus = c.order.Status
		snap.Status = c.order.Canonical()
		snap.State = c.order.State()
	}
	return snap
}

// Refresh forces a visible fetch of the order.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetch(ctx, false)
}

// SyncTimer resets the local clock from the store's work-time endpoint
// without fetching the whole order.
func (c *Controller) SyncTimer(ctx context.Context) error {
	seconds, err := c.store.WorkTime(ctx, c.orderID)
	if err != nil {
		return fmt.Errorf("sync work time %s: %w", c.orderID, err)
	}
	c.counter.Reset(seconds)
	c.emit()
	return nil
}

func (c *Controller) Start(ctx context.Context) error {
	return c.do(ctx, ActionStart, c.store.Start)
}

func (c *Controller) Pause(ctx context.Context) error {
	return c.do(ctx, ActionPause, c.store.Pause)
}

func (c *Controller) Resume(ctx context.Context) error {
	return c.do(ctx, ActionResume, c.store.Resume)
}

func (c *Controller) Finalize(ctx context.Context) error {
	return c.do(ctx, ActionFinalize, c.store.Finalize)
}

// Do dispatches an action by name.
func (c *Controller) Do(ctx context.Context, a Action) error {
	switch a {
	case ActionStart:
		return c.Start(ctx)
	case ActionPause:
		return c.Pause(ctx)
	case ActionResume:
		return c.Resume(ctx)
	case ActionFinalize:
		return c.Finalize(ctx)
	}
	return fmt.Errorf("unknown action %q", a)
}

func (c *Controller) do(ctx context.Context, action Action, call func(context.Context, string) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", action, ErrSubmitting)
	}
	if !EvaluateControls(c.order, false).Enabled(action) {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", action, ErrActionUnavailable)
	}
	c.submitting = true
	c.mu.Unlock()
	c.emit()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
		c.emit()
	}()

	err := call(ctx, c.orderID)
	c.metrics.ObserveAction(string(action), err)
	if err != nil {
		aerr := &ActionError{Action: action, Err: err}
		c.logger.Warn("work session action failed",
			zap.String("order_id", c.orderID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		c.notifier.Notify(Notification{Action: action, Err: aerr})
		// 失败后以服务端状态为准
		if ferr := c.fetch(ctx, true); ferr != nil {
			c.logger.Warn("reconcile after failed action", zap.String("order_id", c.orderID), zap.Error(ferr))
		}
		return aerr
	}

	// 动作已生效但回读失败，同样按失败报告一次
	if err := c.fetch(ctx, false); err != nil {
		aerr := &ActionError{Action: action, Err: err}
		c.notifier.Notify(Notification{Action: action, Err: aerr})
		return aerr
	}
	if action == ActionPause || action == ActionResume {
		if err := c.SyncTimer(ctx); err != nil {
			c.logger.Warn("work time sync failed", zap.String("order_id", c.orderID), zap.Error(err))
		}
	}

	c.logger.Info("work session action applied",
		zap.String("order_id", c.orderID),
		zap.String("action", string(action)),
	)
	return nil
}

// fetch loads the order and overwrites local state with it. A silent fetch
// does not toggle the loading flag.
func (c *Controller) fetch(ctx context.Context, silent bool) error {
	if !silent {
		c.setLoading(true)
		defer c.setLoading(false)
	}
	order, err := c.store.Fetch(ctx, c.orderID)
	if err != nil {
		return fmt.Errorf("fetch order %s: %w", c.orderID, err)
	}
	c.apply(order)
	return nil
}

func (c *Controller) apply(o *Order) {
	c.mu.Lock()
	c.order = o
	c.mu.Unlock()

	c.counter.Reset(o.ElapsedSeconds)
	c.counter.SetRunning(o.State() == Running)
	c.emit()
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) emit() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.observers {
		fn(snap)
	}
}

func (c *Controller) tickLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if c.counter.Tick() {
				c.emit()
			}
		}
	}
}

func (c *Controller) pollLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			err := c.fetch(ctx, true)
			if ctx.Err() != nil {
				return
			}
			c.metrics.ObservePoll(err)
			if err != nil {
				c.logger.Warn("work session poll failed",
					zap.String("order_id", c.orderID),
					zap.Error(err),
				)
			}
		}
	}
}
