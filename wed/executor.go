package wed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ShellExecutor is the only impure leaf the core scheduler depends on: it
// runs an already rendered capture script (see RenderCaptureScript) with args
// and returns the raw bytes the script wrote to stdout. Grounded on the BashScript wrapper of
// original_source/src/bash_utils.py: write source to a fresh executable
// file, invoke it, capture stdout. stdoutLog/stderrLog, when non-nil, also
// receive a copy of the child's stdout/stderr for the worker log files of
// spec.md §6; they do not affect the returned, parsed capture bytes.
type ShellExecutor interface {
	Execute(ctx context.Context, source string, args []string, stdoutLog, stderrLog io.Writer) ([]byte, error)
}

// OSShellExecutor spawns a real child process for each invocation.
type OSShellExecutor struct{}

var _ ShellExecutor = OSShellExecutor{}

// Execute writes source to a fresh 0700 temp file and runs it with args,
// returning its stdout. A non-zero exit or spawn failure is returned as an
// error; stderr is attached for diagnostics.
func (OSShellExecutor) Execute(ctx context.Context, source string, args []string, stdoutLog, stderrLog io.Writer) ([]byte, error) {
	f, err := os.CreateTemp("", "wed-task-*.sh")
	if err != nil {
		return nil, fmt.Errorf("wed: creating script file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(source); err != nil {
		f.Close()
		return nil, fmt.Errorf("wed: writing script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("wed: closing script file: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		return nil, fmt.Errorf("wed: marking script executable: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	// The child must not inherit the parent's environment: a task body runs
	// arbitrary, experiment-authored bash, and spec.md §4.6 requires it to
	// run in a sanitised shell. Only PATH is passed through, so the capture
	// template can still find mktemp/comm/grep; everything else (including
	// process secrets) is withheld the way
	// original_source/src/py_runtime.py's render_capture_bash_script wraps
	// the body in `env -i bash --noprofile --norc -c "..."`.
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = teeWriter(&stdout, stdoutLog)
	cmd.Stderr = teeWriter(&stderr, stderrLog)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("wed: script %s failed: %w (stderr: %s)", path, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func teeWriter(primary *bytes.Buffer, secondary io.Writer) io.Writer {
	if secondary == nil {
		return primary
	}
	return io.MultiWriter(primary, secondary)
}

// captureTemplate is the sanitised shell prelude described in spec.md §4.6:
// it reconstructs the variable environment from the single joined argument,
// marks ro bindings readonly in the child shell, runs the task body, then
// emits every variable the body declared or mutated as capture triples.
//
// The body's effect on the environment is captured by snapshotting `set -o
// posix; set` before and after the body runs and diffing with comm -13,
// exactly as original_source/src/py_runtime.py's render_capture_bash_script
// does with its ENV0/ENVF temp files — not by walking every currently
// declared variable, which would also re-emit untouched inherited bindings
// and, for bash's own array-typed bookkeeping variables (BASH_ALIASES,
// BASH_CMDS, BASH_ARGC, BASH_ARGV, ...), trip "unbound variable" under
// set -u the moment they're indirectly expanded while empty. Excluding the
// whole BASH_ namespace (plus the handful of other pseudo-variables the
// original's grep -v pipeline excludes) sidesteps both problems.
const captureTemplate = `#!/usr/bin/env bash
set -u
set -e

__wed_decode() {
	printf '%%s' "$1" | sed -e 's/\\,/\x1e/g' -e 's/,/\x1f/g' -e 's/\x1e/,/g'
}

__wed_args="${1:-}"
if [ -n "$__wed_args" ]; then
	IFS=$'\x1f' read -r -a __wed_fields <<< "$(__wed_decode "$__wed_args")"
	for ((__wed_i=0; __wed_i<${#__wed_fields[@]}; __wed_i+=3)); do
		__wed_name="${__wed_fields[$__wed_i]}"
		__wed_value="${__wed_fields[$((__wed_i+1))]}"
		__wed_perm="${__wed_fields[$((__wed_i+2))]}"
		if [ "$__wed_perm" = "ro" ]; then
			readonly "$__wed_name=$__wed_value"
		else
			export "$__wed_name=$__wed_value"
		fi
	done
fi

__wed_env0=$(mktemp)
__wed_envf=$(mktemp)
trap 'rm -f "$__wed_env0" "$__wed_envf"' EXIT
(set -o posix; set) > "$__wed_env0"

%s

(set -o posix; set) > "$__wed_envf"

comm -13 "$__wed_env0" "$__wed_envf" |
	grep -Ev '^(__wed_|BASH_|PIPESTATUS=|_=|FUNCNAME=|SHELLOPTS=|GROUPS=|PWD=|OLDPWD=)' |
	while IFS='=' read -r __wed_name __wed_rest; do
		if ! declare -p "$__wed_name" >/dev/null 2>&1; then
			continue
		fi
		__wed_val="${!__wed_name}"
		if declare -p "$__wed_name" 2>/dev/null | grep -q '^declare -r'; then
			__wed_perm=ro
		else
			__wed_perm=rw
		fi
		printf '%%s\n%%s\n%%s\n' "$__wed_name" "$__wed_val" "$__wed_perm"
	done
`

// RenderCaptureScript renders body inside the capture template.
func RenderCaptureScript(body string) string {
	return fmt.Sprintf(captureTemplate, body)
}

// EncodeArgument joins (id, value, permission) triples with ',', escaping
// literal commas in values as `\,`, per spec.md §4.4 step 1.
func EncodeArgument(vars []Variable, bindings map[string]VarBinding) string {
	var fields []string
	for _, v := range vars {
		b := bindings[v.ID]
		fields = append(fields, v.ID, escapeCommas(b.Value), b.Permission.String())
	}
	return strings.Join(fields, ",")
}

func escapeCommas(s string) string {
	return strings.ReplaceAll(s, ",", `\,`)
}

// ParseCaptureOutput parses raw as groups of three LF-separated lines
// (identifier, value, permission), per spec.md §6, constructing a Delta.
func ParseCaptureOutput(raw []byte) (Delta, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wed: reading captured output: %w", err)
	}
	if len(lines)%3 != 0 {
		return nil, fmt.Errorf("wed: captured output has %d lines, not a multiple of 3", len(lines))
	}

	delta := NewDelta()
	for i := 0; i < len(lines); i += 3 {
		id, value, permStr := lines[i], lines[i+1], lines[i+2]
		if !ValidIdentifier(id) {
			return nil, fmt.Errorf("wed: captured output names invalid identifier %q", id)
		}
		if !ValidValue(value) {
			return nil, fmt.Errorf("wed: captured output for %q has an invalid value", id)
		}
		perm, err := ParsePermission(permStr)
		if err != nil {
			return nil, fmt.Errorf("wed: captured output for %q: %w", id, err)
		}
		delta.Set(id, value, perm)
	}
	return delta, nil
}
