package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner spawns an external process and returns its stdout.
type Runner interface {
	Output(ctx context.Context, argv []string) ([]byte, error)
}

// ProcessError reports a process that could not be started or exited non-zero.
type ProcessError struct {
	Argv     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit status %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ", error message: " + stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the exit code of a failed process, or -1 when err
// is not a ProcessError.
func ExitStatus(err error) int {
	var perr *ProcessError
	if errors.As(err, &perr) {
		return perr.ExitCode
	}
	return -1
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	// Env, when set, replaces the environment of spawned processes
	Env []string
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Output(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("failed to run command: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &ProcessError{
			Argv:     argv,
			ExitCode: exitCode,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// TimeoutPrefix returns the argv prefix that makes coreutils timeout(1)
// kill the wrapped command after d.
func TimeoutPrefix(d time.Duration) []string {
	return []string{"timeout", fmt.Sprintf("%.2fs", d.Seconds())}
}

// WithTimeout prepends TimeoutPrefix to argv. A non-positive d leaves argv
// unchanged.
func WithTimeout(d time.Duration, argv []string) []string {
	if d <= 0 {
		return argv
	}
	prefix := TimeoutPrefix(d)
	out := make([]string, 0, len(prefix)+len(argv))
	out = append(out, prefix...)
	return append(out, argv...)
}
