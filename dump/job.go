package dump

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/randalmurphal/backupflow/artifact"
)

// Target is one artifact a job produces per run.
type Target struct {
	// Label names the artifact in messages ("SQL backup", "archive").
	Label string

	// Name is the artifact's file name shape; Date is filled in by Targets.
	Name artifact.Name

	// Compress requests gzip compression after verification.
	Compress bool
}

// Path returns where the target is written inside dir.
func (t Target) Path(dir string) string {
	return filepath.Join(dir, t.Name.String())
}

// Set returns the rotation set the target belongs to.
// Compressed targets rotate by their final .gz name.
func (t Target) Set() artifact.Name {
	set := t.Name
	set.Date = time.Time{}
	if t.Compress {
		set = set.WithExt(set.Ext + artifact.CompressedExt)
	}
	return set
}

// Job is one backup variant.
type Job interface {
	// Kind is the configuration name of the job ("postgresql").
	Kind() string

	// Title is the human name used as the notification footer.
	Title() string

	// Preflight checks the source is ready before anything is written.
	Preflight(ctx context.Context) error

	// Targets lists the artifacts the job writes for host on date.
	Targets(host string, date time.Time) []Target

	// Dump writes target to path, a scratch file the caller verifies and
	// renames into place. The caller removes path if Dump fails.
	Dump(ctx context.Context, target Target, path string) error
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
