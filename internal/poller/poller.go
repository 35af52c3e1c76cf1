package poller

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breachwatch/internal/findings"
	"github.com/linnemanlabs/breachwatch/internal/workorder"
)

// DefaultInterval is the delay between consecutive status polls for one
// work order.
const DefaultInterval = 30 * time.Second

// Checker fetches the remote status of a work order by correlation id.
type Checker interface {
	Check(ctx context.Context, workOrderID string) (*workorder.Status, error)
}

// Notifier delivers the single user-visible completion notice for a work
// order. Failures are logged by the supervisor and never retried: the store
// write is the durable fact.
type Notifier interface {
	WorkOrderCompleted(ctx context.Context, investigationID string, report *workorder.Report) error
}

// Supervisor owns all polling tasks, at most one per investigation. Starting
// and stopping a task always goes through the supervisor's lock, so there is
// never more than one active loop per work order id.
type Supervisor struct {
	store    findings.Store
	checker  Checker
	notifier Notifier
	interval time.Duration
	logger   log.Logger
	metrics  *Metrics

	mu    sync.Mutex
	tasks map[string]*task // investigation id -> active task
}

// New creates a supervisor. notifier and metrics may be nil; an interval of 0
// means DefaultInterval.
func New(store findings.Store, checker Checker, notifier Notifier, interval time.Duration, logger log.Logger, metrics *Metrics) *Supervisor {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{
		store:    store,
		checker:  checker,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		tasks:    make(map[string]*task),
	}
}

// Sync reconciles the supervisor with an investigation's current findings.
//
// If the set contains a finding awaiting a work order, a polling task for
// that work order is running afterwards: calling Sync again with the same id
// is a no-op, while a different id tears the old task down first. If no
// finding is awaiting a work order (including when the finding already shows
// a completed report written by another path), any running task is abandoned
// without a completion notice.
func (s *Supervisor) Sync(_ context.Context, investigationID string, fs []findings.Finding) {
	target := awaiting(fs)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.tasks[investigationID]
	if target == nil {
		if cur != nil {
			s.stopLocked(investigationID, "no pending work order")
		}
		return
	}

	workOrderID := target.WorkOrderID()
	if cur != nil {
		if cur.workOrderID == workOrderID {
			// Already polling this order.
			return
		}
		s.stopLocked(investigationID, "work order changed")
	}

	s.startLocked(investigationID, workOrderID, target.ID)
}

// Stop abandons the investigation's polling task, if any, and waits for its
// loop to exit.
func (s *Supervisor) Stop(investigationID string) {
	s.mu.Lock()
	t := s.tasks[investigationID]
	if t != nil {
		s.stopLocked(investigationID, "caller stopped")
	}
	s.mu.Unlock()

	if t != nil {
		<-t.done
	}
}

// StopAll abandons every polling task and waits for all loops to exit. Used
// on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	stopped := make([]*task, 0, len(s.tasks))
	for id, t := range s.tasks {
		s.stopLocked(id, "shutdown")
		stopped = append(stopped, t)
	}
	s.mu.Unlock()

	for _, t := range stopped {
		<-t.done
	}
}

// Active returns the work order id currently polled for an investigation, or
// "" if none.
func (s *Supervisor) Active(investigationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tasks[investigationID]; t != nil {
		return t.workOrderID
	}
	return ""
}

// awaiting picks the single finding of the set that is waiting on a work
// order, or nil.
func awaiting(fs []findings.Finding) *findings.Finding {
	for i := range fs {
		if fs[i].AwaitingWorkOrder() {
			return &fs[i]
		}
	}
	return nil
}

// startLocked registers and launches a task. Caller holds s.mu.
func (s *Supervisor) startLocked(investigationID, workOrderID, findingID string) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		investigationID: investigationID,
		workOrderID:     workOrderID,
		findingID:       findingID,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	s.tasks[investigationID] = t

	if s.metrics != nil {
		s.metrics.ActiveTasks.Inc()
	}
	s.logger.Info(ctx, "work order polling started",
		"investigation_id", investigationID,
		"work_order_id", workOrderID,
	)

	go s.run(ctx, t)
}

// stopLocked cancels a task and removes it from the table. Caller holds s.mu.
// In-flight polls are allowed to finish; their results are discarded because
// the task's context is cancelled before they could act on them.
func (s *Supervisor) stopLocked(investigationID, reason string) {
	t := s.tasks[investigationID]
	if t == nil {
		return
	}
	t.cancel()
	delete(s.tasks, investigationID)

	if s.metrics != nil {
		s.metrics.ActiveTasks.Dec()
		s.metrics.AbandonsTotal.WithLabelValues(reason).Inc()
	}
	s.logger.Info(context.Background(), "work order polling abandoned",
		"investigation_id", investigationID,
		"work_order_id", t.workOrderID,
		"reason", reason,
	)
}

// remove deregisters a task that terminated on its own. The pointer compare
// guards against removing a successor task started under the same
// investigation id.
func (s *Supervisor) remove(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.investigationID] == t {
		delete(s.tasks, t.investigationID)
		if s.metrics != nil {
			s.metrics.ActiveTasks.Dec()
		}
	}
}

// task is one polling loop bound to a single work order id.
type task struct {
	investigationID string
	workOrderID     string
	findingID       string
	cancel          context.CancelFunc
	done            chan struct{}
}

// run polls immediately, then on the configured interval, until a terminal
// outcome or cancellation.
func (s *Supervisor) run(ctx context.Context, t *task) {
	defer close(t.done)

	if s.poll(ctx, t) {
		s.remove(t)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.poll(ctx, t) {
				s.remove(t)
				return
			}
		}
	}
}

// poll performs one status check and reports whether the task reached a
// terminal state. Transport and provider errors read as still-pending: the
// remote workflow has no deadline, so transient failures are tolerated
// indefinitely without a retry budget.
func (s *Supervisor) poll(ctx context.Context, t *task) (terminal bool) {
	L := s.logger.With(
		"investigation_id", t.investigationID,
		"work_order_id", t.workOrderID,
	)

	st, err := s.checker.Check(ctx, t.workOrderID)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-poll; the outcome is discarded.
			return false
		}
		L.Error(ctx, err, "work order status check failed")
		if s.metrics != nil {
			s.metrics.PollsTotal.WithLabelValues("error").Inc()
		}
		return false
	}

	if ctx.Err() != nil {
		// Cancelled while the check was in flight; discard the outcome.
		return false
	}

	if st.Pending || !st.Success {
		if s.metrics != nil {
			s.metrics.PollsTotal.WithLabelValues("pending").Inc()
		}
		return false
	}

	if s.metrics != nil {
		s.metrics.PollsTotal.WithLabelValues("success").Inc()
	}
	return s.complete(ctx, L, t, st)
}

// complete merges the terminal payload into the finding and fires the single
// completion notice. The conditional store update is the at-most-once guard:
// if another writer already completed the finding, the update reports no
// write and the task abandons silently. A failed update keeps the task in
// its polling loop, since the remote result is idempotent to re-fetch.
func (s *Supervisor) complete(ctx context.Context, L log.Logger, t *task, st *workorder.Status) bool {
	completed, err := s.store.CompleteWorkOrder(ctx, t.findingID,
		st.Data, findings.CompletedConfidence, findings.StatusVerified)
	if err != nil {
		L.Error(ctx, err, "failed to persist work order result")
		return false
	}
	if !completed {
		L.Info(ctx, "work order already completed by another writer")
		if s.metrics != nil {
			s.metrics.AbandonsTotal.WithLabelValues("already completed").Inc()
		}
		return true
	}

	if s.metrics != nil {
		s.metrics.CompletionsTotal.Inc()
	}
	L.Info(ctx, "work order completed")

	if s.notifier != nil {
		report, perr := workorder.ParseReport(st.Data)
		if perr != nil {
			L.Error(ctx, perr, "work order result not parseable for notification")
			return true
		}
		if nerr := s.notifier.WorkOrderCompleted(ctx, t.investigationID, report); nerr != nil {
			L.Error(ctx, nerr, "work order completion notice failed")
		}
	}
	return true
}
