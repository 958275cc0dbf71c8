package wed

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	uuid "github.com/hashicorp/go-uuid"
)

// Status is the terminal outcome of driving an experiment instance.
type Status int

const (
	// Final means final_guard was satisfied with no task in flight.
	Final Status = iota
	// Inconsistent means no task's guard holds and final_guard does not
	// either: the workflow is stuck.
	Inconsistent
	// Failed means a worker recorded a fatal error.
	Failed
)

// Name returns the instance name used in log lines and InconsistentState
// error messages.
func (s *Scheduler) Name() string {
	return s.InstanceName
}

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Final:
		return "final"
	case Inconsistent:
		return "inconsistent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// backoff is the fixed sleep between fruitless polling rounds, per
// spec.md §4.5.
const backoff = 100 * time.Millisecond

// Scheduler drives N worker goroutines over one Experiment and one State
// until a terminal condition is observed.
type Scheduler struct {
	Experiment *Experiment
	State      *State
	Runner     *Runner
	Logger     hclog.Logger
	TaskLogger *TaskLogger
	Workers    int
	InstanceName string

	mu       sync.Mutex
	fatal    error
	doneChan chan struct{}
	doneOnce sync.Once
}

// NewScheduler builds a Scheduler. workers must be >= 1. Each instance is
// tagged with a random identifier (via go-uuid, the same generator the
// teacher uses for allocation and evaluation IDs) so that log lines and
// InconsistentState errors from concurrently-run instances of the same
// experiment can be told apart.
func NewScheduler(exp *Experiment, state *State, runner *Runner, logger hclog.Logger, taskLogger *TaskLogger, workers int) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if workers < 1 {
		workers = 1
	}
	name, err := uuid.GenerateUUID()
	if err != nil {
		name = "instance"
	}
	return &Scheduler{
		Experiment:   exp,
		State:        state,
		Runner:       runner,
		Logger:       logger.With("instance", name),
		TaskLogger:   taskLogger,
		Workers:      workers,
		InstanceName: name,
		doneChan:     make(chan struct{}),
	}
}

// Run spawns Workers goroutines and blocks until one of them observes a
// terminal condition, then waits for the rest to drain. It returns the
// terminal Status and, for Inconsistent and Failed, the first fatal error
// recorded by any worker; the status of a non-final run follows that error
// (Inconsistent for an InconsistentState, Failed otherwise).
func (s *Scheduler) Run(ctx context.Context) (Status, error) {
	var wg sync.WaitGroup
	var finalStatus Status
	var statusOnce sync.Once

	setStatus := func(st Status) {
		statusOnce.Do(func() {
			finalStatus = st
			s.doneOnce.Do(func() { close(s.doneChan) })
		})
	}

	for i := 0; i < s.Workers; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			st := s.workerLoop(ctx, workerID)
			setStatus(st)
		}()
	}
	wg.Wait()

	if finalStatus != Final {
		err := s.fatalError()
		if _, ok := err.(*InconsistentState); ok {
			return Inconsistent, err
		}
		return Failed, err
	}
	return Final, nil
}

// workerLoop implements the per-worker step() loop of spec.md §4.5.
func (s *Scheduler) workerLoop(ctx context.Context, id int) Status {
	for {
		select {
		case <-s.doneChan:
			return Final // another worker already decided; value unused by caller
		case <-ctx.Done():
			s.recordFatal(ctx.Err())
			return Failed
		default:
		}

		if s.isFinal() {
			s.Logger.Info("experiment reached final state", "worker", id)
			return Final
		}
		if s.hasFatal() {
			return Failed
		}
		if s.isInconsistent() {
			s.recordFatal(&InconsistentState{Experiment: s.Name()})
			s.Logger.Warn("experiment reached an inconsistent state", "worker", id)
			return Inconsistent
		}

		ready := s.readyTasks()
		if len(ready) > 0 {
			t := ready[rand.IntN(len(ready))]
			s.execute(ctx, t)
		}

		select {
		case <-s.doneChan:
			return Final
		case <-ctx.Done():
			s.recordFatal(ctx.Err())
			return Failed
		case <-time.After(backoff):
		}
	}
}

func (s *Scheduler) hasFatal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal != nil
}

func (s *Scheduler) fatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// recordFatal records err as the instance's fatal error if none has been
// recorded yet; the policy of spec.md §7 keeps only the first.
func (s *Scheduler) recordFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

// isFinal implements spec.md §4.5: acquire every variable lock
// non-blockingly in lexicographic order; with all locks held, evaluate
// final_guard; release; return the result. Holding every lock proves no
// other worker is mid-task.
func (s *Scheduler) isFinal() bool {
	vars := s.State.Variables()
	if !s.State.TryLock(vars) {
		return false
	}
	defer s.State.Unlock(vars)
	snap := s.State.SnapshotOf(vars)
	return s.Experiment.FinalGuard.Satisfies(snap)
}

// isInconsistent implements spec.md §4.5: true iff final_guard is
// unsatisfied and no task's guard is satisfied by the current snapshot,
// under the same every-lock-held protocol as isFinal.
func (s *Scheduler) isInconsistent() bool {
	vars := s.State.Variables()
	if !s.State.TryLock(vars) {
		return false
	}
	defer s.State.Unlock(vars)
	snap := s.State.SnapshotOf(vars)

	if s.Experiment.FinalGuard.Satisfies(snap) {
		return false
	}
	for _, t := range s.Experiment.Tasks {
		if t.Guard.Satisfies(snap) {
			return false
		}
	}
	return true
}

// isReady implements spec.md §4.5: an advisory check — readiness may become
// stale between this call and execute.
func (s *Scheduler) isReady(t Task) bool {
	vars := sortedVars(t.OnVariables().Slice())
	if !s.State.TryLock(vars) {
		return false
	}
	defer s.State.Unlock(vars)
	snap := s.State.SnapshotOf(vars)
	return t.Guard.Satisfies(snap)
}

// readyTasks collects every task for which isReady currently returns true.
func (s *Scheduler) readyTasks() []Task {
	var ready []Task
	for _, t := range s.Experiment.Tasks {
		if s.isReady(t) {
			ready = append(ready, t)
		}
	}
	return ready
}

// execute is the critical path of spec.md §4.5.
func (s *Scheduler) execute(ctx context.Context, t Task) bool {
	vars := sortedVars(t.OnVariables().Slice())
	if !s.State.TryLock(vars) {
		return false
	}
	defer s.State.Unlock(vars)

	snap := s.State.SnapshotOf(vars)
	if !t.Guard.Satisfies(snap) {
		// Stale readiness: another worker already moved this task's
		// variables out of its guard's satisfaction.
		return false
	}

	bindings := s.State.BindingsOf(vars)
	outW, errW := s.TaskLogger.Open(t.Name)
	defer closeIfNotNil(outW)
	defer closeIfNotNil(errW)

	delta, err := s.Runner.Run(ctx, t, bindings, outW, errW)
	if err != nil {
		s.recordFatal(err)
		s.Logger.Error("task execution failed", "task", t.Name, "error", err)
		return false
	}

	if mergeErr := s.State.Merge(delta, t.Name); mergeErr != nil {
		s.recordFatal(mergeErr)
		s.Logger.Error("task merge failed", "task", t.Name, "error", mergeErr)
		return false
	}

	s.Logger.Debug("task executed", "task", t.Name, "variables", len(delta))
	return true
}
