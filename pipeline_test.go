package backupflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/command"
	"github.com/randalmurphal/backupflow/dump"
	bferrors "github.com/randalmurphal/backupflow/errors"
	bfhttp "github.com/randalmurphal/backupflow/http"
	"github.com/randalmurphal/backupflow/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

var today = testutil.Day(2024, time.March, 1).Add(2 * time.Hour)

// sqlSet is the rotation set of compressed PostgreSQL dumps for db1.
var sqlSet = artifact.Name{Host: "db1", Ext: "sql.gz", Sep: "_"}

type fixture struct {
	dir      string
	runner   *command.MockRunner
	notifier *testutil.RecordingNotifier
	job      *dump.PostgreSQL
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := command.NewMockRunner()
	return &fixture{
		dir:      filepath.Join(t.TempDir(), "backup"),
		runner:   runner,
		notifier: &testutil.RecordingNotifier{},
		job: &dump.PostgreSQL{
			Host:      "localhost",
			User:      "postgres",
			Databases: []string{"app"},
			Compress:  true,
			Runner:    runner,
		},
	}
}

func (f *fixture) pipeline(mods ...func(*Config)) *Pipeline {
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	cfg := Config{
		Host:          "db1",
		BackupDir:     f.dir,
		Retention:     7,
		CompressLevel: -1,
		Job:           f.job,
		Notifier:      f.notifier,
		Logger:        zap.New(core),
		Now:           func() time.Time { return today },
	}
	for _, m := range mods {
		m(&cfg)
	}
	return New(cfg)
}

func states(r *RunResult) []State {
	out := []State{StateStart}
	for _, tr := range r.Transitions {
		out = append(out, tr.To)
	}
	return out
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeUploader struct {
	keys []string
	err  error
}

func (u *fakeUploader) Upload(ctx context.Context, host, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	key := "backups/" + host + "/" + filepath.Base(path)
	u.keys = append(u.keys, key)
	return key, nil
}

// =============================================================================
// Successful Runs
// =============================================================================

func TestRun_EmptyDirectory(t *testing.T) {
	f := newFixture(t)
	payload := testutil.Payload(10 * 1024)
	f.runner.OnCommand("pg_dump").Writes(payload)

	result := f.pipeline().Run(context.Background())

	if result.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, err = %v", result.ExitCode(), result.Err)
	}
	names := testutil.Names(t, f.dir)
	if len(names) != 1 || names[0] != "db1_01-03-2024.sql.gz" {
		t.Fatalf("backup dir = %v, want [db1_01-03-2024.sql.gz]", names)
	}
	if result.Deleted() != 0 {
		t.Errorf("Deleted() = %d, want 0", result.Deleted())
	}
	if got := testutil.ReadGzip(t, filepath.Join(f.dir, names[0])); !bytes.Equal(got, payload) {
		t.Error("decompressed artifact differs from the dump")
	}

	want := []State{StateStart, StatePreflight, StateDumping, StateVerifying, StateCompressing, StateRotating, StateDone}
	if got := states(result); !equalStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if len(f.notifier.Events()) != 0 {
		t.Errorf("successful run sent %d notification(s)", len(f.notifier.Events()))
	}
	if !f.runner.WasCalled("pg_isready", "-h", "localhost") {
		t.Error("readiness check was not run")
	}
	if !f.runner.WasCalled("pg_dump", "-h", "localhost", "-U", "postgres", "app") {
		t.Error("pg_dump was not run with the expected arguments")
	}
}

func TestRun_RecordsArtifact(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(4096))

	result := f.pipeline().Run(context.Background())

	if len(result.Artifacts) != 1 {
		t.Fatalf("len(Artifacts) = %d, want 1", len(result.Artifacts))
	}
	a := result.Artifacts[0]
	if !a.Compressed || !strings.HasSuffix(a.Path, ".sql.gz") {
		t.Errorf("artifact = %+v, want a compressed .sql.gz", a)
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if a.Size != info.Size() || result.Bytes() != info.Size() {
		t.Errorf("Size = %d, Bytes() = %d, want %d", a.Size, result.Bytes(), info.Size())
	}
	sum, err := artifact.Checksum(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Checksum != sum {
		t.Errorf("Checksum = %q, want %q", a.Checksum, sum)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_RotatesNineExisting(t *testing.T) {
	f := newFixture(t)
	seeded := testutil.SeedDaily(t, f.dir, sqlSet, 9, testutil.Day(2024, time.March, 1))
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(10 * 1024))

	result := f.pipeline().Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	if len(result.Rotations) != 1 {
		t.Fatalf("len(Rotations) = %d, want 1", len(result.Rotations))
	}
	report := result.Rotations[0]
	if report.Found != 10 {
		t.Errorf("Found = %d, want 10", report.Found)
	}
	if result.Deleted() != 3 {
		t.Errorf("Deleted() = %d, want 3", result.Deleted())
	}
	for _, p := range seeded[:3] {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been deleted", filepath.Base(p))
		}
	}
	for _, p := range seeded[3:] {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should have been kept: %v", filepath.Base(p), err)
		}
	}
	if got := len(testutil.Names(t, f.dir)); got != 7 {
		t.Errorf("%d artifacts remain, want 7", got)
	}
}

func TestRun_SameDayTwiceLeavesOneArtifact(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(2048))
	p := f.pipeline()

	first := p.Run(context.Background())
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(3000))
	second := p.Run(context.Background())

	if !first.Succeeded() || !second.Succeeded() {
		t.Fatalf("runs failed: %v / %v", first.Err, second.Err)
	}
	names := testutil.Names(t, f.dir)
	if len(names) != 1 {
		t.Fatalf("backup dir = %v, want one artifact", names)
	}
	if got := testutil.ReadGzip(t, filepath.Join(f.dir, names[0])); len(got) != 3000 {
		t.Errorf("artifact holds %d bytes, want the second run's 3000", len(got))
	}
	if first.RunID == second.RunID {
		t.Error("runs share a RunID")
	}
}

func TestRun_GlobalsRotateSeparately(t *testing.T) {
	f := newFixture(t)
	f.job.Globals = true
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(1024))
	f.runner.OnCommand("pg_dumpall").Writes([]byte("CREATE ROLE app;\n"))

	globals := sqlSet
	globals.Suffix = dump.GlobalsSuffix
	testutil.SeedDaily(t, f.dir, sqlSet, 3, testutil.Day(2024, time.March, 1))
	testutil.SeedDaily(t, f.dir, globals, 3, testutil.Day(2024, time.March, 1))

	result := f.pipeline(func(c *Config) { c.Retention = 2 }).Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	if len(result.Artifacts) != 2 {
		t.Errorf("len(Artifacts) = %d, want 2", len(result.Artifacts))
	}
	if len(result.Rotations) != 2 {
		t.Fatalf("len(Rotations) = %d, want 2", len(result.Rotations))
	}
	for _, rep := range result.Rotations {
		if rep.Found != 4 || len(rep.Kept) != 2 || len(rep.Deleted()) != 2 {
			t.Errorf("%s: found %d kept %d deleted %d, want 4/2/2",
				rep.Pattern, rep.Found, len(rep.Kept), len(rep.Deleted()))
		}
	}
	if !f.runner.WasCalled("pg_dumpall", "-h", "localhost", "-U", "postgres", "--globals-only") {
		t.Error("globals dump was not run")
	}
}

func TestRun_DirectoryJobSkipsCompression(t *testing.T) {
	f := newFixture(t)
	src := t.TempDir()
	f.runner.OnCommand("tar").Do(func(c command.Cmd) error {
		return os.WriteFile(c.Args[1], testutil.Payload(512), 0o600)
	})
	job := dump.NewDirectory([]string{src}, []string{"/proc"}, f.runner)

	result := f.pipeline(func(c *Config) { c.Job = job }).Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	names := testutil.Names(t, f.dir)
	if len(names) != 1 || names[0] != "db1-01-03-2024.tgz" {
		t.Errorf("backup dir = %v, want [db1-01-03-2024.tgz]", names)
	}
	for _, s := range states(result) {
		if s == StateCompressing {
			t.Error("directory job entered COMPRESSING")
		}
	}
	if result.Artifacts[0].Compressed {
		t.Error("tgz artifact marked compressed")
	}
}

func TestRun_Upload(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(1024))
	up := &fakeUploader{}

	result := f.pipeline(func(c *Config) { c.Uploader = up }).Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	want := "backups/db1/db1_01-03-2024.sql.gz"
	if len(up.keys) != 1 || up.keys[0] != want {
		t.Errorf("uploaded %v, want [%s]", up.keys, want)
	}
	if result.Artifacts[0].ObjectKey != want {
		t.Errorf("ObjectKey = %q, want %q", result.Artifacts[0].ObjectKey, want)
	}
	wantStates := []State{StateStart, StatePreflight, StateDumping, StateVerifying, StateCompressing, StateUploading, StateRotating, StateDone}
	if got := states(result); !equalStates(got, wantStates) {
		t.Errorf("states = %v, want %v", got, wantStates)
	}
}

func TestRun_DeletionFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	seeded := testutil.SeedDaily(t, f.dir, sqlSet, 3, testutil.Day(2024, time.March, 1))
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(1024))
	locked := seeded[0]

	result := f.pipeline(func(c *Config) {
		c.Retention = 1
		c.Remove = func(path string) error {
			if path == locked {
				return os.ErrPermission
			}
			return os.Remove(path)
		}
	}).Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	if result.Deleted() != 2 || result.DeletionFailures() != 1 {
		t.Errorf("Deleted() = %d, DeletionFailures() = %d, want 2 and 1", result.Deleted(), result.DeletionFailures())
	}
	if len(f.notifier.Events()) != 0 {
		t.Error("deletion failure sent a notification")
	}
	if f.logs.FilterMessage("Failed to delete old backup").Len() != 1 {
		t.Error("deletion failure was not logged")
	}
}

func TestRun_NegativeRetentionDeletesWholeSet(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(1024))

	result := f.pipeline(func(c *Config) { c.Retention = -3 }).Run(context.Background())

	if !result.Succeeded() {
		t.Fatalf("run failed: %v", result.Err)
	}
	if names := testutil.Names(t, f.dir); len(names) != 0 {
		t.Errorf("backup dir = %v, want empty", names)
	}
}

// =============================================================================
// Failed Runs
// =============================================================================

func TestRun_DumpFailure(t *testing.T) {
	f := newFixture(t)
	seeded := testutil.SeedDaily(t, f.dir, sqlSet, 9, testutil.Day(2024, time.March, 1))
	f.runner.OnCommand("pg_dump").Fails(1, "connection refused")

	result := f.pipeline().Run(context.Background())

	if result.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", result.ExitCode())
	}
	if !bferrors.IsExternalToolFailure(result.Err) {
		t.Errorf("Err = %v, want an external tool failure", result.Err)
	}
	if result.FailedStage() != StageDump {
		t.Errorf("FailedStage() = %q, want %q", result.FailedStage(), StageDump)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "db1_01-03-2024.sql")); !os.IsNotExist(err) {
		t.Error("failed dump left an artifact behind")
	}
	if len(result.Rotations) != 0 {
		t.Error("rotation ran after a failed dump")
	}
	for _, p := range seeded {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s was touched by a failed run", filepath.Base(p))
		}
	}

	events := f.notifier.Events()
	if len(events) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(events))
	}
	e := events[0]
	want := "PostgreSQL Backup error: Dump failed on db1: database app: pg_dump exited 1: connection refused"
	if e.Message != want {
		t.Errorf("Message = %q\nwant      %q", e.Message, want)
	}
	if e.Stage != StageDump || e.Host != "db1" || e.Job != "PostgreSQL Backup" || e.RunID != result.RunID {
		t.Errorf("event = %+v", e)
	}
	if got := states(result); got[len(got)-1] != StateFailed {
		t.Errorf("final state = %s, want FAILED", got[len(got)-1])
	}
}

func TestRun_FailedRerunKeepsEarlierArtifact(t *testing.T) {
	tests := []struct {
		name  string
		fail  func(r *command.MockRunner)
		stage string
	}{
		{
			name:  "tool fails",
			fail:  func(r *command.MockRunner) { r.OnCommand("tar").Do(nil).Fails(2, "tar: /srv: Cannot open") },
			stage: StageDump,
		},
		{
			name: "tool writes nothing",
			fail: func(r *command.MockRunner) {
				r.OnCommand("tar").Do(func(c command.Cmd) error {
					return os.WriteFile(c.Args[1], nil, 0o600)
				})
			},
			stage: StageVerify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.OnCommand("tar").Do(func(c command.Cmd) error {
				return os.WriteFile(c.Args[1], testutil.Payload(512), 0o600)
			})
			p := f.pipeline(func(c *Config) { c.Job = dump.NewDirectory([]string{t.TempDir()}, nil, f.runner) })

			if first := p.Run(context.Background()); !first.Succeeded() {
				t.Fatalf("first run failed: %v", first.Err)
			}
			good := filepath.Join(f.dir, "db1-01-03-2024.tgz")

			tt.fail(f.runner)
			second := p.Run(context.Background())

			if second.FailedStage() != tt.stage {
				t.Errorf("FailedStage() = %q, want %q", second.FailedStage(), tt.stage)
			}
			data, err := os.ReadFile(good)
			if err != nil {
				t.Fatalf("earlier artifact: %v", err)
			}
			if !bytes.Equal(data, testutil.Payload(512)) {
				t.Error("earlier artifact was overwritten")
			}
			if names := testutil.Names(t, f.dir); len(names) != 1 {
				t.Errorf("backup dir = %v, want only the earlier artifact", names)
			}
		})
	}
}

func TestRun_EmptyDump(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(nil)

	result := f.pipeline().Run(context.Background())

	if result.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", result.ExitCode())
	}
	if !bferrors.IsEmptyArtifact(result.Err) {
		t.Errorf("Err = %v, want an empty artifact failure", result.Err)
	}
	if bferrors.IsExternalToolFailure(result.Err) {
		t.Error("empty artifact classified as an external tool failure")
	}
	if names := testutil.Names(t, f.dir); len(names) != 0 {
		t.Errorf("backup dir = %v, want empty", names)
	}

	e, ok := f.notifier.Last()
	if !ok {
		t.Fatal("no notification sent")
	}
	want := "PostgreSQL Backup failed: SQL backup is empty or missing on db1"
	if e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	if e.Stage != StageVerify {
		t.Errorf("Stage = %q, want %q", e.Stage, StageVerify)
	}
}

func TestRun_PreflightFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_isready").Fails(2, "localhost:5432 - no response")

	result := f.pipeline().Run(context.Background())

	if !errors.Is(result.Err, bferrors.ErrPreflight) {
		t.Errorf("Err = %v, want ErrPreflight", result.Err)
	}
	if f.runner.CallCount("pg_dump") != 0 {
		t.Error("dump ran after a failed readiness check")
	}
	want := []State{StateStart, StatePreflight, StateFailed}
	if got := states(result); !equalStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if e, ok := f.notifier.Last(); !ok || e.Stage != StagePreflight {
		t.Errorf("notification = %+v, %v", e, ok)
	}
}

func TestRun_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Writes(testutil.Payload(1024))
	up := &fakeUploader{err: errors.New("bucket not found")}

	result := f.pipeline(func(c *Config) { c.Uploader = up }).Run(context.Background())

	if !errors.Is(result.Err, bferrors.ErrUpload) {
		t.Errorf("Err = %v, want ErrUpload", result.Err)
	}
	if len(result.Rotations) != 0 {
		t.Error("rotation ran after a failed upload")
	}
	e, ok := f.notifier.Last()
	if !ok || !strings.Contains(e.Message, "Upload failed on db1") {
		t.Errorf("notification = %+v", e)
	}
}

func TestRun_NotificationFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("webhook down")
	f.runner.OnCommand("pg_dump").Fails(1, "boom")

	result := f.pipeline().Run(context.Background())

	if result.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", result.ExitCode())
	}
	if result.NotifyErr == nil {
		t.Error("NotifyErr not recorded")
	}
	if !bferrors.IsExternalToolFailure(result.Err) {
		t.Errorf("Err = %v, delivery failure must not replace the run error", result.Err)
	}
	if f.logs.FilterMessage("Notification failed").Len() != 1 {
		t.Error("delivery failure was not logged")
	}
}

func TestRun_NotificationFailureLogsHint(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = fmt.Errorf("slack: %w", &bfhttp.APIError{Service: "slack", StatusCode: 404})
	f.runner.OnCommand("pg_dump").Fails(1, "boom")

	f.pipeline().Run(context.Background())

	entries := f.logs.FilterMessage("Notification failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d delivery failures, want 1", len(entries))
	}
	hint, _ := entries[0].ContextMap()["hint"].(string)
	if !strings.Contains(hint, "webhook_url") {
		t.Errorf("hint = %q", hint)
	}
}

func TestRun_NilNotifier(t *testing.T) {
	f := newFixture(t)
	f.runner.OnCommand("pg_dump").Fails(1, "boom")

	result := f.pipeline(func(c *Config) { c.Notifier = nil }).Run(context.Background())

	if result.ExitCode() != 1 || result.NotifyErr != nil {
		t.Errorf("ExitCode() = %d, NotifyErr = %v", result.ExitCode(), result.NotifyErr)
	}
}

// =============================================================================
// Rotate-only and Config
// =============================================================================

func TestRotate(t *testing.T) {
	f := newFixture(t)
	testutil.SeedDaily(t, f.dir, sqlSet, 5, testutil.Day(2024, time.March, 1))

	result := f.pipeline(func(c *Config) { c.Retention = 2 }).Rotate(context.Background())

	if !result.Succeeded() {
		t.Fatalf("rotate failed: %v", result.Err)
	}
	if result.Deleted() != 3 {
		t.Errorf("Deleted() = %d, want 3", result.Deleted())
	}
	if len(f.runner.Calls) != 0 {
		t.Errorf("rotate ran %d command(s)", len(f.runner.Calls))
	}
	want := []State{StateStart, StateRotating, StateDone}
	if got := states(result); !equalStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestRotate_MissingDirectory(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline().Rotate(context.Background())

	if !result.Succeeded() {
		t.Errorf("rotate of a missing directory failed: %v", result.Err)
	}
	if result.Deleted() != 0 {
		t.Errorf("Deleted() = %d, want 0", result.Deleted())
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{Host: "db 1", Job: &dump.PostgreSQL{}})
	cfg := p.Config()

	if cfg.Host != artifact.SanitizeHost("db 1") {
		t.Errorf("Host = %q, want sanitized", cfg.Host)
	}
	if cfg.SortBy != artifact.SortByDate {
		t.Errorf("SortBy = %q, want %q", cfg.SortBy, artifact.SortByDate)
	}
	if cfg.Now == nil {
		t.Error("Now not defaulted")
	}
}
