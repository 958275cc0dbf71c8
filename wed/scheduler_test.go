package wed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shoenig/test/must"
)

func newTestState(exp *Experiment, seed Delta) *State {
	s := NewState(exp.Variables())
	if seed != nil {
		_ = s.Merge(seed, "")
	}
	return s
}

func runScheduler(t *testing.T, exp *Experiment, state *State, exec ShellExecutor, workers int) (Status, error) {
	t.Helper()
	runner := NewRunner(exec)
	sched := NewScheduler(exp, state, runner, nil, nil, workers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Run(ctx)
}

// TestSchedulerLinearPipelinePermissionViolation is scenario 1 of spec.md
// §8: task A sets S="mid" read-only; task B then tries to overwrite S and
// must fail with PermissionViolation, and the scheduler must report Failed.
func TestSchedulerLinearPipelinePermissionViolation(t *testing.T) {
	taskA, err := NewTask("A", mustGuard(t, `$S = ""`), marker("task-a")+"\n")
	must.NoError(t, err)
	taskB, err := NewTask("B", mustGuard(t, `$S = "mid"`), marker("task-b")+"\n")
	must.NoError(t, err)

	exp, err := NewExperiment(
		mustGuard(t, `$S = ""`),
		mustGuard(t, `$S = "done"`),
		[]Task{taskA, taskB},
	)
	must.NoError(t, err)

	exec := newScriptedExecutor()
	exec.onTriples(marker("task-a"), [3]string{"S", "mid", "ro"})
	exec.onTriples(marker("task-b"), [3]string{"S", "done", "rw"})

	state := newTestState(exp, nil)
	status, runErr := runScheduler(t, exp, state, exec, 1)

	must.Eq(t, Failed, status)
	must.Error(t, runErr)
	var violation *PermissionViolation
	must.True(t, errors.As(runErr, &violation))
	must.Eq(t, "S", violation.Variable)
}

// TestSchedulerDiamondExactlyOneRuns is scenario 2 of spec.md §8: two tasks
// both guarded on $Z = "" and both writing Z race for the same lock;
// whichever runs first invalidates the other's guard, so the experiment
// reaches final with Z holding exactly one of the two candidate values.
func TestSchedulerDiamondExactlyOneRuns(t *testing.T) {
	taskX, err := NewTask("TX", mustGuard(t, `$Z = ""`), marker("task-x")+"\n")
	must.NoError(t, err)
	taskY, err := NewTask("TY", mustGuard(t, `$Z = ""`), marker("task-y")+"\n")
	must.NoError(t, err)

	exp, err := NewExperiment(
		mustGuard(t, `$Z = ""`),
		mustGuard(t, `$Z in ["x", "y"]`),
		[]Task{taskX, taskY},
	)
	must.NoError(t, err)

	var mu sync.Mutex
	runs := 0
	exec := newScriptedExecutor()
	exec.on(marker("task-x"), func(args []string) ([]byte, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return encodeTriples([3]string{"Z", "x", "rw"}), nil
	})
	exec.on(marker("task-y"), func(args []string) ([]byte, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return encodeTriples([3]string{"Z", "y", "rw"}), nil
	})

	state := newTestState(exp, nil)
	status, runErr := runScheduler(t, exp, state, exec, 4)

	must.NoError(t, runErr)
	must.Eq(t, Final, status)
	must.Eq(t, 1, runs)

	snap := state.Snapshot()
	must.True(t, snap["Z"] == "x" || snap["Z"] == "y")
}

// TestSchedulerInconsistentState is scenario 3 of spec.md §8: a task whose
// guard can never hold given the reachable values of its variables leaves
// the experiment with no satisfiable task guard and an unsatisfied final
// guard, which the scheduler must report as Inconsistent.
func TestSchedulerInconsistentState(t *testing.T) {
	taskUnreachable, err := NewTask("U", mustGuard(t, `$X = "never"`), marker("unreachable")+"\n")
	must.NoError(t, err)

	exp, err := NewExperiment(
		mustGuard(t, `$X = ""`),
		mustGuard(t, `$X = "done"`),
		[]Task{taskUnreachable},
	)
	must.NoError(t, err)

	exec := newScriptedExecutor()
	exec.onTriples(marker("unreachable"), [3]string{"X", "done", "rw"})

	state := newTestState(exp, nil)
	status, runErr := runScheduler(t, exp, state, exec, 2)

	must.Eq(t, Inconsistent, status)
	must.Error(t, runErr)
	var inconsistent *InconsistentState
	must.True(t, errors.As(runErr, &inconsistent))
}

// TestSchedulerParallelIndependentTasks is scenario 4 / property P2 of
// spec.md §8: two tasks whose on_variables sets are disjoint may execute
// concurrently; both must complete and the experiment reaches final.
func TestSchedulerParallelIndependentTasks(t *testing.T) {
	taskP, err := NewTask("P", mustGuard(t, `$P = ""`), marker("task-p")+"\n")
	must.NoError(t, err)
	taskQ, err := NewTask("Q", mustGuard(t, `$Q = ""`), marker("task-q")+"\n")
	must.NoError(t, err)

	exp, err := NewExperiment(
		mustGuard(t, `$P = ""`),
		mustGuard(t, `$P != ""`, `$Q != ""`),
		[]Task{taskP, taskQ},
	)
	must.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	started := make(chan string, 2)

	exec := newScriptedExecutor()
	exec.on(marker("task-p"), func(args []string) ([]byte, error) {
		started <- "P"
		wg.Done()
		wg.Wait() // blocks until Q has also started: proves concurrent execution
		return encodeTriples([3]string{"P", "done", "rw"}), nil
	})
	exec.on(marker("task-q"), func(args []string) ([]byte, error) {
		started <- "Q"
		wg.Done()
		wg.Wait()
		return encodeTriples([3]string{"Q", "done", "rw"}), nil
	})

	state := newTestState(exp, nil)
	status, runErr := runScheduler(t, exp, state, exec, 2)

	must.NoError(t, runErr)
	must.Eq(t, Final, status)

	snap := state.Snapshot()
	must.Eq(t, "done", snap["P"])
	must.Eq(t, "done", snap["Q"])
}

// TestSchedulerUndeclaredDependencyFails is scenario 5 of spec.md §8: a task
// mutating a variable outside its declared on_variables set must fail the
// instance with UndeclaredDependency and never merge the offending delta.
func TestSchedulerUndeclaredDependencyFails(t *testing.T) {
	taskT, err := NewTask("T", mustGuard(t, `$B = ""`), marker("undeclared-sched")+"\n")
	must.NoError(t, err)

	exp, err := NewExperiment(
		mustGuard(t, `$B = ""`),
		mustGuard(t, `$B = "done"`),
		[]Task{taskT},
	)
	must.NoError(t, err)

	exec := newScriptedExecutor()
	exec.onTriples(marker("undeclared-sched"), [3]string{"SURPRISE", "oops", "rw"})

	state := newTestState(exp, nil)
	status, runErr := runScheduler(t, exp, state, exec, 1)

	must.Eq(t, Failed, status)
	var undeclared *UndeclaredDependency
	must.True(t, errors.As(runErr, &undeclared))

	snap := state.Snapshot()
	_, present := snap["SURPRISE"]
	must.False(t, present)
}
