package wed

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// scriptedExecutor is a ShellExecutor test double that never spawns a real
// shell: it inspects the rendered script for a test-chosen marker substring
// (each test task body embeds one as a comment) and returns a canned
// capture-protocol response, or an error, for that marker. This lets
// scheduler and runner tests exercise the full locking/merge/validation path
// deterministically without depending on a host bash.
type scriptedExecutor struct {
	responses map[string]func(args []string) ([]byte, error)
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{responses: make(map[string]func(args []string) ([]byte, error))}
}

// on registers the response for a task whose body contains marker.
func (e *scriptedExecutor) on(marker string, fn func(args []string) ([]byte, error)) {
	e.responses[marker] = fn
}

// onTriples is a convenience for the common case of a fixed capture output.
func (e *scriptedExecutor) onTriples(marker string, triples ...[3]string) {
	e.on(marker, func(args []string) ([]byte, error) {
		return encodeTriples(triples...), nil
	})
}

func (e *scriptedExecutor) Execute(_ context.Context, source string, args []string, stdoutLog, stderrLog io.Writer) ([]byte, error) {
	for marker, fn := range e.responses {
		if strings.Contains(source, marker) {
			out, err := fn(args)
			if stdoutLog != nil && err == nil {
				stdoutLog.Write(out)
			}
			return out, err
		}
	}
	return nil, fmt.Errorf("scriptedExecutor: no response registered matching script:\n%s", source)
}

var _ ShellExecutor = (*scriptedExecutor)(nil)

func encodeTriples(triples ...[3]string) []byte {
	var b strings.Builder
	for _, t := range triples {
		fmt.Fprintf(&b, "%s\n%s\n%s\n", t[0], t[1], t[2])
	}
	return []byte(b.String())
}

func marker(s string) string { return "# wed-test-marker: " + s }
