package backupflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/dump"
	bferrors "github.com/randalmurphal/backupflow/errors"
	bfhttp "github.com/randalmurphal/backupflow/http"
	"github.com/randalmurphal/backupflow/notify"
)

// =============================================================================
// Config
// =============================================================================

// Uploader copies a finished artifact offsite and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, host, path string) (string, error)
}

// Config is everything one run needs. It is passed by value and never
// modified by the pipeline.
type Config struct {
	Host          string
	BackupDir     string
	Retention     int              // Artifacts kept per set; negative means 0
	SortBy        artifact.SortKey // Rotation order, artifact.SortByDate if empty
	CompressLevel int              // gzip level, -1 for the default

	Job      dump.Job
	Notifier notify.Notifier // Receives fatal failures; nil disables
	Uploader Uploader        // Nil disables the upload stage
	Logger   *zap.Logger

	// Now returns the current time; time.Now if nil.
	Now func() time.Time

	// Remove deletes a file during rotation; os.Remove if nil.
	Remove func(string) error
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline runs the stages of a backup job.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SortBy == "" {
		cfg.SortBy = artifact.SortByDate
	}
	cfg.Host = artifact.SanitizeHost(cfg.Host)
	return &Pipeline{cfg: cfg, log: log}
}

// Config returns a copy of the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// run carries the state of one Run call.
type run struct {
	*Pipeline
	ctx     context.Context
	result  *RunResult
	log     *zap.Logger
	targets []dump.Target
	paths   []string
}

func (p *Pipeline) start(ctx context.Context) *run {
	now := p.cfg.Now()
	result := newRunResult(p.cfg.Host, p.cfg.Job.Kind(), now)
	return &run{
		Pipeline: p,
		ctx:      ctx,
		result:   result,
		log: p.log.With(
			zap.String("run_id", result.RunID),
			zap.String("host", result.Host),
			zap.String("job", result.Job),
		),
		targets: p.cfg.Job.Targets(p.cfg.Host, now),
	}
}

// Run executes the full pipeline. The result is never nil; check
// result.ExitCode() for the process status.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	r := p.start(ctx)
	r.log.Info("Backup started", zap.String("backup_dir", p.cfg.BackupDir), zap.Int("retention", p.retention()))

	steps := []func() error{r.preflight, r.dump, r.verify, r.compress, r.upload}
	for _, step := range steps {
		if err := step(); err != nil {
			r.fail(err)
			return r.result
		}
	}

	r.rotate()
	r.finish()
	return r.result
}

// Rotate runs only the rotation stage against existing artifacts.
func (p *Pipeline) Rotate(ctx context.Context) *RunResult {
	r := p.start(ctx)
	r.log.Info("Rotation started", zap.String("backup_dir", p.cfg.BackupDir), zap.Int("retention", p.retention()))
	r.rotate()
	r.finish()
	return r.result
}

func (p *Pipeline) retention() int {
	if p.cfg.Retention < 0 {
		return 0
	}
	return p.cfg.Retention
}

func (r *run) enter(s State) {
	r.result.enter(s, r.cfg.Now())
	r.log.Debug("State changed", zap.String("state", string(s)))
}

// stageError builds the fatal error for stage. class is the failure class
// (may be nil when cause already carries one).
func (r *run) stageError(stage, detail string, class, cause error) error {
	err := cause
	if class != nil && cause != nil {
		err = fmt.Errorf("%w: %w", class, cause)
	} else if class != nil {
		err = class
	}
	if detail == "" && cause != nil {
		detail = cause.Error()
	}
	return bferrors.NewStageError(stage, r.result.Host, detail, err)
}

// =============================================================================
// Stages
// =============================================================================

func (r *run) preflight() error {
	r.enter(StatePreflight)

	if err := os.MkdirAll(r.cfg.BackupDir, 0o755); err != nil {
		return r.stageError(StagePreflight, "create backup directory: "+err.Error(), bferrors.ErrPreflight, err)
	}

	if err := r.cfg.Job.Preflight(r.ctx); err != nil {
		r.log.Error("Readiness check failed. Aborting backup.", zap.Error(err))
		return r.stageError(StagePreflight, "", bferrors.ErrPreflight, err)
	}
	r.log.Info("Readiness check passed")
	return nil
}

func (r *run) dump() error {
	r.enter(StateDumping)

	for _, t := range r.targets {
		partial := artifact.PartialPath(t.Path(r.cfg.BackupDir))
		r.paths = append(r.paths, partial)
		r.log.Info("Dumping "+t.Label, zap.String("path", partial))

		// A crashed run can leave a partial behind; appending dumps must start empty.
		r.discard(partial)
		if err := r.cfg.Job.Dump(r.ctx, t, partial); err != nil {
			r.discardPartials()
			return r.stageError(StageDump, "", bferrors.ErrExternalTool, err)
		}
	}
	return nil
}

// verify checks every partial and only then publishes them under their
// dated names, so a failed rerun never touches an earlier artifact.
func (r *run) verify() error {
	r.enter(StateVerifying)

	for i, t := range r.targets {
		if !artifact.Verify(r.paths[i]) {
			final := t.Path(r.cfg.BackupDir)
			r.log.Error(t.Label+" is empty or missing", zap.String("path", final))
			r.discardPartials()
			return r.stageError(StageVerify, t.Label+" is empty or missing: "+final, bferrors.ErrEmptyArtifact, nil)
		}
	}

	for i, t := range r.targets {
		final := t.Path(r.cfg.BackupDir)
		if err := artifact.Publish(r.paths[i], final); err != nil {
			r.discardPartials()
			return r.stageError(StageVerify, "publish "+t.Label+": "+err.Error(), nil, err)
		}
		r.paths[i] = final
	}
	r.log.Info("All artifacts verified", zap.Int("count", len(r.paths)))
	return nil
}

// discardPartials removes the scratch files of targets not yet published.
func (r *run) discardPartials() {
	for i, t := range r.targets {
		if i < len(r.paths) && r.paths[i] != t.Path(r.cfg.BackupDir) {
			r.discard(r.paths[i])
		}
	}
}

func (r *run) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.Warn("Could not remove partial artifact", zap.String("path", path), zap.Error(err))
	}
}

func (r *run) compress() error {
	compressing := false
	for _, t := range r.targets {
		compressing = compressing || t.Compress
	}
	if !compressing {
		r.record()
		return nil
	}

	r.enter(StateCompressing)
	for i, t := range r.targets {
		if !t.Compress {
			continue
		}
		out, err := artifact.Compress(r.paths[i], r.cfg.CompressLevel)
		if err != nil {
			return r.stageError(StageCompress, "", nil, err)
		}
		if err := artifact.CheckArchive(out); err != nil {
			return r.stageError(StageCompress, "", nil, err)
		}
		r.log.Info("Compressed "+t.Label, zap.String("path", out))
		r.paths[i] = out
	}
	r.record()
	return nil
}

// record fills the result's artifact list from the final paths.
func (r *run) record() {
	for i, t := range r.targets {
		path := r.paths[i]
		rec := ArtifactRecord{Label: t.Label, Path: path, Compressed: t.Compress}
		if info, err := os.Stat(path); err == nil {
			rec.Size = info.Size()
		}
		sum, err := artifact.Checksum(path)
		if err != nil {
			r.log.Warn("Could not checksum artifact", zap.String("path", path), zap.Error(err))
		}
		rec.Checksum = sum
		r.log.Info("Artifact ready",
			zap.String("path", path),
			zap.Int64("size", rec.Size),
			zap.String("blake2b", sum),
		)
		r.result.Artifacts = append(r.result.Artifacts, rec)
	}
}

func (r *run) upload() error {
	if r.cfg.Uploader == nil {
		return nil
	}

	r.enter(StateUploading)
	for i := range r.result.Artifacts {
		rec := &r.result.Artifacts[i]
		key, err := r.cfg.Uploader.Upload(r.ctx, r.result.Host, rec.Path)
		if err != nil {
			return r.stageError(StageUpload, "", bferrors.ErrUpload, err)
		}
		rec.ObjectKey = key
		r.log.Info("Uploaded "+rec.Label, zap.String("key", key))
	}
	return nil
}

func (r *run) rotate() {
	r.enter(StateRotating)

	rotator := artifact.NewRotator(r.retention(),
		artifact.WithSortKey(r.cfg.SortBy),
		artifact.WithRemoveFunc(r.cfg.Remove),
	)

	seen := make(map[string]bool)
	for _, t := range r.targets {
		set := t.Set()
		if seen[set.Pattern()] {
			continue
		}
		seen[set.Pattern()] = true

		report := rotator.Rotate(r.cfg.BackupDir, set)
		r.result.Rotations = append(r.result.Rotations, report)

		if report.ListErr != nil {
			r.log.Error("Could not list backups for rotation", zap.String("pattern", report.Pattern), zap.Error(report.ListErr))
			continue
		}
		for _, o := range report.Outcomes {
			if o.Deleted() {
				r.log.Info("Deleted old backup", zap.String("path", o.Path))
			} else {
				r.log.Error("Failed to delete old backup", zap.String("path", o.Path), zap.Error(o.Err))
			}
		}
		r.log.Info("Rotated "+t.Label+" set",
			zap.String("pattern", report.Pattern),
			zap.Int("found", report.Found),
			zap.Int("kept", len(report.Kept)),
			zap.Int("deleted", len(report.Deleted())),
		)
	}
}

func (r *run) finish() {
	r.enter(StateDone)
	r.log.Info("Backup process completed successfully.",
		zap.Duration("duration", r.result.Duration()),
		zap.Int("deleted", r.result.Deleted()),
		zap.Int("deletion_failures", r.result.DeletionFailures()),
	)
}

// fail moves the run to FAILED, logs the error and sends the notification.
func (r *run) fail(err error) {
	r.result.Err = err
	r.enter(StateFailed)
	r.log.Error("Backup aborted", zap.String("stage", bferrors.StageOf(err)), zap.Error(err))

	if r.cfg.Notifier == nil {
		return
	}
	event := failureEvent(r.cfg.Job, r.result, r.cfg.Now())
	if nerr := r.cfg.Notifier.Notify(r.ctx, event); nerr != nil {
		r.result.NotifyErr = nerr
		fields := []zap.Field{zap.Error(nerr)}
		if hint := bfhttp.Hint(nerr); hint != "" {
			fields = append(fields, zap.String("hint", hint))
		}
		r.log.Error("Notification failed", fields...)
	}
}
