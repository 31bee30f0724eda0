package alerts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdv-retail/business-alerts/metrics"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultRefreshInterval is the time between periodic refresh cycles.
const DefaultRefreshInterval = 5 * time.Minute

// Reasons for refusing a trigger.
var (
	errRefreshInProgress = errors.New("refresh already in progress")
	errNotStarted        = errors.New("refresher not started")
	errClosed            = errors.New("refresher closed")
)

// State is the state of a Refresher.
type State int

const (
	StateIdle State = iota
	StateLoading
)

// String returns the name of the state.
func (s State) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "idle"
}

// Runner runs a single refresh cycle.
type Runner interface {
	Run(ctx context.Context) (*model.Snapshot, error)
}

// Publisher makes a snapshot available to the presentation layer.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snapshot *model.Snapshot) error
}

// Refresher keeps the current set of notifications up to date. A cycle runs as soon as the
// refresher is started, then periodically and on demand. At most one cycle runs at a time;
// triggers that arrive while a cycle is running are ignored.
type Refresher struct {
	runner    Runner
	interval  time.Duration
	publisher Publisher
	log       *logrus.Entry
	metrics   *metrics.Metrics

	// mu guards state, started, closed and every store to snapshot.
	mu       sync.Mutex
	state    State
	started  bool
	closed   bool
	snapshot atomic.Pointer[model.Snapshot]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher returns a refresher that runs cycles using runner. The metrics may be nil.
func NewRefresher(runner Runner, interval time.Duration, log *logrus.Entry, m *metrics.Metrics) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		runner:   runner,
		interval: interval,
		log:      log,
		metrics:  m,
		state:    StateLoading,
	}
}

// WithPublisher sets the publisher that receives every new snapshot.
func (r *Refresher) WithPublisher(publisher Publisher) *Refresher {
	r.publisher = publisher
	return r
}

// State returns the current state of the refresher.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the notifications currently on display, or nil if no cycle has completed yet.
func (r *Refresher) Snapshot() *model.Snapshot {
	return r.snapshot.Load()
}

// Loaded returns true once the first cycle has installed a snapshot.
func (r *Refresher) Loaded() bool {
	return r.snapshot.Load() != nil
}

// Start runs the initial cycle and then one cycle per interval until ctx is done or Close is
// called. Start returns immediately.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	// The refresher starts out loading, so the initial cycle doesn't go through begin.
	r.cycle(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.trigger(ctx, "timer")
		}
	}
}

// Close stops the periodic refresh. Results of a cycle that is still running are discarded.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Refresh runs a cycle right away. It returns false without doing anything if a cycle is already
// running or the refresher is closed.
func (r *Refresher) Refresh(ctx context.Context) bool {
	return r.trigger(ctx, "manual")
}

func (r *Refresher) trigger(ctx context.Context, source string) bool {
	err := r.begin()
	switch {
	case err == nil:
		r.cycle(ctx)
		return true
	case errors.Is(err, errRefreshInProgress):
		r.log.WithField("trigger", source).Info("refresh already in progress, ignoring trigger")
		if r.metrics != nil {
			r.metrics.IncrementIgnoredTriggers()
		}
	default:
		r.log.WithField("trigger", source).WithError(err).Info("refresher not running, ignoring trigger")
	}
	return false
}

// begin moves the refresher from idle to loading.
func (r *Refresher) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return errClosed
	case !r.started:
		return errNotStarted
	case r.state == StateLoading:
		return errRefreshInProgress
	}
	r.state = StateLoading
	return nil
}

// cycle runs the pipeline once and installs the result. The refresher must be loading.
func (r *Refresher) cycle(ctx context.Context) {
	start := time.Now()
	outcome := metrics.OutcomeFailed

	defer func() {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()

		if r.metrics != nil {
			r.metrics.ObserveCycle(outcome, time.Since(start))
		}
	}()

	snapshot, err := r.run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			outcome = metrics.OutcomeDiscarded
			r.log.WithError(err).Debug("refresh cycle discarded")
			return
		}
		r.log.WithError(err).Error("refresh cycle failed, keeping the previous notifications")
		return
	}

	if !r.install(ctx, snapshot) {
		outcome = metrics.OutcomeDiscarded
		r.log.Debug("refresher closed during the cycle, discarding results")
		return
	}
	outcome = metrics.OutcomePublished

	if r.metrics != nil {
		r.metrics.SetCounts(snapshot.Counts)
	}
	r.publish(ctx, snapshot)
}

// run calls the runner, turning a panic into an error.
func (r *Refresher) run(ctx context.Context) (snapshot *model.Snapshot, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			snapshot = nil
			err = fmt.Errorf("refresh pipeline panicked: %v", rec)
		}
	}()
	return r.runner.Run(ctx)
}

// install replaces the current snapshot unless the refresher was closed or ctx ended.
func (r *Refresher) install(ctx context.Context, snapshot *model.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || ctx.Err() != nil {
		return false
	}
	r.snapshot.Store(snapshot)
	return true
}

// Dismiss removes a notification from the current snapshot. The notification returns on the next
// cycle if its source record still qualifies. It returns false if there is no such notification.
func (r *Refresher) Dismiss(ctx context.Context, id string) bool {
	r.mu.Lock()
	current := r.snapshot.Load()
	if current == nil {
		r.mu.Unlock()
		return false
	}
	next, ok := current.Without(id)
	if ok {
		r.snapshot.Store(next)
	}
	r.mu.Unlock()

	if ok {
		r.publish(ctx, next)
	}
	return ok
}

func (r *Refresher) publish(ctx context.Context, snapshot *model.Snapshot) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		r.log.WithError(err).WithField("cycle_id", snapshot.CycleID).Error("unable to publish notifications")
	}
}
