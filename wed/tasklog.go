package wed

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// TaskLogger writes the <task>_<ts>.out/<task>_<ts>.err file pairs
// described in spec.md §6, one pair per task execution, when logging is
// enabled. Grounded on the per-task-execution log file concept of the
// teacher's client/logmon package, simplified here to one-shot files since
// wed tasks are fire-and-forget scripts rather than long-lived processes
// needing rotation.
type TaskLogger struct {
	dir     string
	counter atomic.Int64
}

// NewTaskLogger returns a TaskLogger writing under dir. dir must already
// exist.
func NewTaskLogger(dir string) *TaskLogger {
	return &TaskLogger{dir: dir}
}

// Open returns the stdout/stderr writers for one execution of task. Each
// call uses a monotonically increasing counter rather than a wall-clock
// timestamp so that two executions of the same task within the same
// millisecond never collide; the counter is formatted alongside the time of
// opening for operator-facing naming.
func (l *TaskLogger) Open(task string) (io.WriteCloser, io.WriteCloser) {
	if l == nil {
		return nil, nil
	}
	seq := l.counter.Add(1)
	ts := fmt.Sprintf("%d-%03d", time.Now().UnixNano()/int64(time.Millisecond), seq%1000)

	outPath := filepath.Join(l.dir, fmt.Sprintf("%s_%s.out", task, ts))
	errPath := filepath.Join(l.dir, fmt.Sprintf("%s_%s.err", task, ts))

	outF, err := os.Create(outPath)
	if err != nil {
		return nil, nil
	}
	errF, err := os.Create(errPath)
	if err != nil {
		outF.Close()
		return nil, nil
	}
	return outF, errF
}

func closeIfNotNil(w io.WriteCloser) {
	if w != nil {
		w.Close()
	}
}
