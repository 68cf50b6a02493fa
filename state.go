package backupflow

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/backupflow/artifact"
	bferrors "github.com/randalmurphal/backupflow/errors"
)

// =============================================================================
// Run States
// =============================================================================

// State is a pipeline state.
type State string

// Pipeline states.
const (
	StateStart       State = "START"
	StatePreflight   State = "PREFLIGHT"
	StateDumping     State = "DUMPING"
	StateVerifying   State = "VERIFYING"
	StateCompressing State = "COMPRESSING"
	StateUploading   State = "UPLOADING"
	StateRotating    State = "ROTATING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Stage names used in errors, logs and notifications.
const (
	StagePreflight = "preflight"
	StageDump      = "dump"
	StageVerify    = "verify"
	StageCompress  = "compress"
	StageUpload    = "upload"
	StageRotate    = "rotate"
)

// transitions lists the states reachable from each state.
// ROTATING deliberately has no edge to FAILED.
var transitions = map[State][]State{
	StateStart:       {StatePreflight, StateRotating, StateFailed},
	StatePreflight:   {StateDumping, StateFailed},
	StateDumping:     {StateVerifying, StateFailed},
	StateVerifying:   {StateCompressing, StateUploading, StateRotating, StateFailed},
	StateCompressing: {StateUploading, StateRotating, StateFailed},
	StateUploading:   {StateRotating, StateFailed},
	StateRotating:    {StateDone},
}

// CanTransition reports whether the pipeline may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// =============================================================================
// RunResult
// =============================================================================

// ArtifactRecord describes one artifact produced by a run.
type ArtifactRecord struct {
	Label      string `json:"label"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Checksum   string `json:"checksum,omitempty"` // BLAKE2b-256, hex
	Compressed bool   `json:"compressed"`
	ObjectKey  string `json:"objectKey,omitempty"`
}

// RunResult is the outcome of one run. It is built while the run progresses
// and is never persisted.
type RunResult struct {
	RunID       string                     `json:"runId"`
	Host        string                     `json:"host"`
	Job         string                     `json:"job"`
	Date        time.Time                  `json:"date"`
	State       State                      `json:"state"`
	Transitions []Transition               `json:"transitions"`
	Artifacts   []ArtifactRecord           `json:"artifacts,omitempty"`
	Rotations   []*artifact.RotationReport `json:"-"`
	Err         error                      `json:"-"`
	NotifyErr   error                      `json:"-"`
	StartedAt   time.Time                  `json:"startedAt"`
	FinishedAt  time.Time                  `json:"finishedAt"`
}

func newRunResult(host, job string, now time.Time) *RunResult {
	return &RunResult{
		RunID:     newRunID(now),
		Host:      host,
		Job:       job,
		Date:      now,
		State:     StateStart,
		StartedAt: now,
	}
}

// enter moves the result to state s. An illegal transition is a programming
// error and panics.
func (r *RunResult) enter(s State, at time.Time) {
	if !CanTransition(r.State, s) {
		panic(fmt.Sprintf("backupflow: invalid transition %s -> %s", r.State, s))
	}
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: s, At: at})
	r.State = s
	if s.Terminal() {
		r.FinishedAt = at
	}
}

// Succeeded reports whether the run reached DONE.
func (r *RunResult) Succeeded() bool {
	return r.State == StateDone
}

// ExitCode is the process exit status for the run: 0 on success, 1 otherwise.
func (r *RunResult) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}

// FailedStage returns the stage that failed, or "" for a successful run.
func (r *RunResult) FailedStage() string {
	return bferrors.StageOf(r.Err)
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Bytes returns the total size of the run's final artifacts.
func (r *RunResult) Bytes() int64 {
	var n int64
	for _, a := range r.Artifacts {
		n += a.Size
	}
	return n
}

// Deleted returns how many old artifacts rotation removed.
func (r *RunResult) Deleted() int {
	n := 0
	for _, rep := range r.Rotations {
		n += len(rep.Deleted())
	}
	return n
}

// DeletionFailures returns how many removals failed during rotation.
func (r *RunResult) DeletionFailures() int {
	n := 0
	for _, rep := range r.Rotations {
		n += len(rep.Failures())
	}
	return n
}

// Summary returns a one-line description of the run.
func (r *RunResult) Summary() string {
	if r.Succeeded() {
		return fmt.Sprintf("Run %s [%s] %s on %s: %d artifact(s), %d bytes, %d rotated, %d deletion failure(s)",
			r.RunID, r.State, r.Job, r.Host, len(r.Artifacts), r.Bytes(), r.Deleted(), r.DeletionFailures())
	}
	return fmt.Sprintf("Run %s [%s] %s on %s: %v", r.RunID, r.State, r.Job, r.Host, r.Err)
}

// newRunID returns a nanoid, or a timestamp if the random source fails.
func newRunID(now time.Time) string {
	id, err := gonanoid.New()
	if err != nil {
		return now.Format("20060102-150405.000")
	}
	return id
}
