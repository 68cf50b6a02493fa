package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	bferrors "github.com/randalmurphal/backupflow/errors"
)

// Cmd describes one external invocation.
type Cmd struct {
	Name string   // Program to run (looked up in PATH)
	Args []string // Arguments, passed verbatim
	Dir  string   // Working directory; empty means the current one
	Env  []string // Extra KEY=VALUE pairs appended to the process environment

	// OutputFile, when set, receives stdout instead of the captured buffer.
	// The file is truncated unless Append is true.
	OutputFile string
	Append     bool
}

// String renders the command for logs.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds what a finished command produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	Run(cmd Cmd) (Result, error)
}

// CommandError reports a command that could not start or exited non-zero.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Output   string // Trimmed stderr
	Err      error
}

func (e *CommandError) Error() string {
	switch {
	case e.Output != "":
		return fmt.Sprintf("%s exited %d: %s", e.Command, e.ExitCode, e.Output)
	case e.Err != nil:
		return e.Command + ": " + e.Err.Error()
	default:
		return "command failed"
	}
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{bferrors.ErrExternalTool}
	}
	return []error{bferrors.ErrExternalTool, e.Err}
}

// ExecRunner runs commands with os/exec. Runs are blocking and not cancellable.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(c Cmd) (Result, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout

	if c.OutputFile != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if c.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(c.OutputFile, flags, 0o600)
		if err != nil {
			return Result{}, &CommandError{Command: c.Name, Args: c.Args, ExitCode: -1, Err: fmt.Errorf("open output: %w", err)}
		}
		defer f.Close()
		cmd.Stdout = f
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, &CommandError{
			Command:  c.Name,
			Args:     c.Args,
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
			Err:      err,
		}
	}

	return res, nil
}
