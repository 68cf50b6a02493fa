package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	bferrors "github.com/randalmurphal/backupflow/errors"
)

// =============================================================================
// ExecRunner Tests
// =============================================================================

func TestExecRunner_Run_Success(t *testing.T) {
	runner := NewExecRunner()

	res, err := runner.Run(Cmd{Name: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "hello" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestExecRunner_Run_Error(t *testing.T) {
	runner := NewExecRunner()

	_, err := runner.Run(Cmd{Name: "ls", Args: []string{"/nonexistent/path/that/does/not/exist"}})
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error should be CommandError, got %T", err)
	}
	if cmdErr.ExitCode == 0 {
		t.Error("ExitCode should be non-zero")
	}
	if !bferrors.IsExternalToolFailure(err) {
		t.Error("command failures should be external tool failures")
	}
}

func TestExecRunner_Run_MissingBinary(t *testing.T) {
	runner := NewExecRunner()

	_, err := runner.Run(Cmd{Name: "definitely-not-a-real-binary-xyz"})
	if !bferrors.IsExternalToolFailure(err) {
		t.Errorf("missing binary should be an external tool failure, got %v", err)
	}
}

func TestExecRunner_OutputFile(t *testing.T) {
	runner := NewExecRunner()
	out := filepath.Join(t.TempDir(), "dump.sql")

	if _, err := runner.Run(Cmd{Name: "echo", Args: []string{"first"}, OutputFile: out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := runner.Run(Cmd{Name: "echo", Args: []string{"second"}, OutputFile: out, Append: true}); err != nil {
		t.Fatalf("Run append: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("output = %q, want both lines", data)
	}

	if _, err := runner.Run(Cmd{Name: "echo", Args: []string{"third"}, OutputFile: out}); err != nil {
		t.Fatalf("Run truncate: %v", err)
	}
	data, _ = os.ReadFile(out)
	if string(data) != "third\n" {
		t.Errorf("output = %q, want truncated file", data)
	}
}

func TestExecRunner_NoShellInterpretation(t *testing.T) {
	runner := NewExecRunner()

	arg := "host; rm -rf / $(whoami)"
	res, err := runner.Run(Cmd{Name: "echo", Args: []string{arg}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != arg {
		t.Errorf("Stdout = %q, want the argument verbatim", res.Stdout)
	}
}

// =============================================================================
// CommandError Tests
// =============================================================================

func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "with output",
			err:  &CommandError{Command: "pg_dump", ExitCode: 1, Output: "connection refused", Err: errors.New("exit status 1")},
			want: "pg_dump exited 1: connection refused",
		},
		{
			name: "without output",
			err:  &CommandError{Command: "tar", Err: errors.New("exit status 2")},
			want: "tar: exit status 2",
		},
		{
			name: "no output or error",
			err:  &CommandError{Command: "test"},
			want: "command failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &CommandError{Command: "tar", Err: underlying}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
	if !errors.Is(err, bferrors.ErrExternalTool) {
		t.Error("errors.Is should return true for ErrExternalTool")
	}
}

func TestCmd_String(t *testing.T) {
	c := Cmd{Name: "pg_dumpall", Args: []string{"-h", "localhost", "--globals-only"}}
	if got := c.String(); got != "pg_dumpall -h localhost --globals-only" {
		t.Errorf("String() = %q", got)
	}
	if got := (Cmd{Name: "true"}).String(); got != "true" {
		t.Errorf("String() = %q, want true", got)
	}
}

// =============================================================================
// MockRunner Tests
// =============================================================================

func TestMockRunner_Run(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		runner := NewMockRunner()
		runner.OnCommand("pg_isready", "-h", "db").Return("accepting connections", nil)

		res, err := runner.Run(Cmd{Name: "pg_isready", Args: []string{"-h", "db"}})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Stdout != "accepting connections" {
			t.Errorf("Stdout = %q", res.Stdout)
		}
	})

	t.Run("command only match", func(t *testing.T) {
		runner := NewMockRunner()
		runner.OnCommand("tar").Return("tar response", nil)

		res, _ := runner.Run(Cmd{Name: "tar", Args: []string{"-czpf", "x.tgz"}})
		if res.Stdout != "tar response" {
			t.Errorf("Stdout = %q", res.Stdout)
		}
	})

	t.Run("wildcard match", func(t *testing.T) {
		runner := NewMockRunner()
		runner.OnAnyCommand().Return("wildcard", nil)

		res, _ := runner.Run(Cmd{Name: "any", Args: []string{"command"}})
		if res.Stdout != "wildcard" {
			t.Errorf("Stdout = %q", res.Stdout)
		}
	})

	t.Run("default response", func(t *testing.T) {
		runner := NewMockRunner()
		runner.DefaultResponse = MockResponse{Stdout: "default"}

		res, _ := runner.Run(Cmd{Name: "cmd"})
		if res.Stdout != "default" {
			t.Errorf("Stdout = %q", res.Stdout)
		}
	})

	t.Run("with error", func(t *testing.T) {
		runner := NewMockRunner()
		expectedErr := errors.New("mock error")
		runner.OnCommand("fail").Return("", expectedErr)

		_, err := runner.Run(Cmd{Name: "fail"})
		if err != expectedErr {
			t.Errorf("error = %v, want %v", err, expectedErr)
		}
	})

	t.Run("exit code", func(t *testing.T) {
		runner := NewMockRunner()
		runner.OnCommand("mariadb-dump").Fails(2, "Access denied")

		_, err := runner.Run(Cmd{Name: "mariadb-dump"})
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			t.Fatalf("expected CommandError, got %T", err)
		}
		if cmdErr.ExitCode != 2 || !strings.Contains(cmdErr.Error(), "Access denied") {
			t.Errorf("unexpected error %v", cmdErr)
		}
	})
}

func TestMockRunner_WritesOutputFile(t *testing.T) {
	runner := NewMockRunner()
	runner.OnCommand("pg_dump").Writes([]byte("CREATE TABLE t();\n"))

	out := filepath.Join(t.TempDir(), "h_01-01-2025.sql")
	if _, err := runner.Run(Cmd{Name: "pg_dump", OutputFile: out}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "CREATE TABLE t();\n" {
		t.Errorf("output = %q", data)
	}
}

func TestMockRunner_Calls(t *testing.T) {
	runner := NewMockRunner()
	runner.OnAnyCommand().Return("", nil)

	runner.Run(Cmd{Name: "pg_dump", Args: []string{"-h", "db", "app"}, Dir: "/backups"})
	runner.Run(Cmd{Name: "pg_dumpall", Args: []string{"--globals-only"}})

	if len(runner.Calls) != 2 {
		t.Fatalf("Calls = %d, want 2", len(runner.Calls))
	}
	if runner.Calls[0].Command != "pg_dump" {
		t.Errorf("first call command = %q", runner.Calls[0].Command)
	}
	if runner.Calls[0].WorkDir != "/backups" {
		t.Errorf("first call workdir = %q", runner.Calls[0].WorkDir)
	}

	if !runner.WasCalled("pg_dump") || !runner.WasCalled("pg_dump", "-h", "db") {
		t.Error("WasCalled should match pg_dump prefixes")
	}
	if runner.WasCalled("pg_dump", "-U") {
		t.Error("WasCalled should not match a different prefix")
	}
	if runner.CallCount("pg_dumpall") != 1 || runner.CallCount("tar") != 0 {
		t.Error("CallCount mismatch")
	}
}

func TestArgsMatch(t *testing.T) {
	tests := []struct {
		name     string
		actual   []string
		expected []string
		want     bool
	}{
		{"equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"different values", []string{"a", "c"}, []string{"a", "b"}, false},
		{"empty", []string{}, []string{}, true},
		{"nil", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := argsMatch(tt.actual, tt.expected); got != tt.want {
				t.Errorf("argsMatch(%v, %v) = %v, want %v", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

// =============================================================================
// LoggedRunner Tests
// =============================================================================

func TestLoggedRunner(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	mock := NewMockRunner()
	mock.OnCommand("pg_isready").Return("localhost:5432 - accepting connections", nil)
	mock.OnCommand("pg_dump").Fails(1, "pg_dump: error: connection refused")

	runner := Logged(mock, zap.New(core))

	if _, err := runner.Run(Cmd{Name: "pg_isready", Args: []string{"-h", "localhost"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := runner.Run(Cmd{Name: "pg_dump", Args: []string{"app"}}); err == nil {
		t.Fatal("expected pg_dump failure")
	}

	if logs.FilterMessage("Running: pg_isready -h localhost").Len() != 1 {
		t.Error("command line should be logged before running")
	}
	if logs.FilterMessage("pg_isready output").Len() != 1 {
		t.Error("captured stdout should be logged")
	}
	failed := logs.FilterMessage("pg_dump failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Errorf("failure entries = %+v", failed)
	}
	if failed[0].ContextMap()["exit_code"] != int64(1) {
		t.Errorf("exit_code = %v", failed[0].ContextMap()["exit_code"])
	}
	stderr := logs.FilterMessage("pg_dump output").All()
	if len(stderr) != 1 || stderr[0].Level != zapcore.WarnLevel {
		t.Errorf("stderr of a failed command should be logged at warn: %+v", stderr)
	}
}

func TestLogged_NilLogger(t *testing.T) {
	runner := Logged(NewMockRunner(), nil)
	if _, err := runner.Run(Cmd{Name: "true"}); err != nil {
		t.Errorf("Run: %v", err)
	}
}
