package command

import (
	"os"
	"strings"
	"sync"
)

// MockResponse is the scripted outcome of a mocked command.
type MockResponse struct {
	Stdout string
	Stderr string

	// Output is written to Cmd.OutputFile when the command redirects stdout.
	Output []byte

	// ExitCode > 0 makes the runner return a CommandError.
	ExitCode int
	Err      error

	// Do runs after Output is written, for side effects like creating an archive.
	Do func(Cmd) error
}

// MockCall records one invocation.
type MockCall struct {
	Command string
	Args    []string
	WorkDir string
	Cmd     Cmd
}

// MockRunner is a Runner that replays scripted responses.
type MockRunner struct {
	mu sync.Mutex

	// Responses is keyed by "name arg1 arg2", "name", or "*".
	Responses       map[string]MockResponse
	DefaultResponse MockResponse
	Calls           []MockCall
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// MockExpectation configures the response for one key.
type MockExpectation struct {
	runner *MockRunner
	key    string
}

// OnCommand scripts a response for an exact command line.
// With no args it matches any invocation of name.
func (m *MockRunner) OnCommand(name string, args ...string) *MockExpectation {
	return &MockExpectation{runner: m, key: commandKey(name, args)}
}

// OnAnyCommand scripts the wildcard response.
func (m *MockRunner) OnAnyCommand() *MockExpectation {
	return &MockExpectation{runner: m, key: "*"}
}

// Return sets stdout and error.
func (e *MockExpectation) Return(stdout string, err error) *MockExpectation {
	return e.update(func(r *MockResponse) {
		r.Stdout = stdout
		r.Err = err
	})
}

// Writes sets the bytes written to the redirected output file.
func (e *MockExpectation) Writes(output []byte) *MockExpectation {
	return e.update(func(r *MockResponse) { r.Output = output })
}

// Fails makes the command exit with code and stderr.
func (e *MockExpectation) Fails(code int, stderr string) *MockExpectation {
	return e.update(func(r *MockResponse) {
		r.ExitCode = code
		r.Stderr = stderr
	})
}

// Do registers a side effect run after the command "executes".
func (e *MockExpectation) Do(fn func(Cmd) error) *MockExpectation {
	return e.update(func(r *MockResponse) { r.Do = fn })
}

func (e *MockExpectation) update(fn func(*MockResponse)) *MockExpectation {
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()
	r := e.runner.Responses[e.key]
	fn(&r)
	e.runner.Responses[e.key] = r
	return e
}

// Run implements Runner.
func (m *MockRunner) Run(c Cmd) (Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Command: c.Name, Args: c.Args, WorkDir: c.Dir, Cmd: c})
	resp := m.lookup(c)
	m.mu.Unlock()

	if c.OutputFile != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if c.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(c.OutputFile, flags, 0o600)
		if err != nil {
			return Result{}, err
		}
		_, werr := f.Write(resp.Output)
		cerr := f.Close()
		if werr != nil {
			return Result{}, werr
		}
		if cerr != nil {
			return Result{}, cerr
		}
	}

	if resp.Do != nil {
		if err := resp.Do(c); err != nil {
			return Result{}, err
		}
	}

	res := Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &CommandError{
			Command:  c.Name,
			Args:     c.Args,
			ExitCode: resp.ExitCode,
			Output:   resp.Stderr,
			Err:      resp.Err,
		}
	}
	return res, resp.Err
}

func (m *MockRunner) lookup(c Cmd) MockResponse {
	if r, ok := m.Responses[commandKey(c.Name, c.Args)]; ok {
		return r
	}
	if r, ok := m.Responses[c.Name]; ok {
		return r
	}
	if r, ok := m.Responses["*"]; ok {
		return r
	}
	return m.DefaultResponse
}

// WasCalled reports whether a call to name started with the given args.
func (m *MockRunner) WasCalled(name string, args ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if call.Command != name || len(call.Args) < len(args) {
			continue
		}
		if argsMatch(call.Args[:len(args)], args) {
			return true
		}
	}
	return false
}

// CallCount returns how many times name was run.
func (m *MockRunner) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.Calls {
		if call.Command == name {
			n++
		}
	}
	return n
}

func commandKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func argsMatch(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
