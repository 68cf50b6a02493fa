package dump

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/command"
)

// Directory archives a set of paths with tar.
type Directory struct {
	Include []string
	Exclude []string
	Runner  command.Runner
}

// NewDirectory creates a directory archive job.
func NewDirectory(include, exclude []string, runner command.Runner) *Directory {
	return &Directory{Include: include, Exclude: exclude, Runner: runner}
}

// Kind implements Job.
func (d *Directory) Kind() string { return "directory" }

// Title implements Job.
func (d *Directory) Title() string { return "System Backup" }

// Preflight implements Job. Every include path must exist.
func (d *Directory) Preflight(ctx context.Context) error {
	if len(d.Include) == 0 {
		return fmt.Errorf("no include paths configured")
	}
	for _, p := range d.Include {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("include path %s: %w", p, err)
		}
	}
	return nil
}

// Targets implements Job.
func (d *Directory) Targets(host string, date time.Time) []Target {
	return []Target{{
		Label: "archive",
		Name:  artifact.Name{Host: host, Date: date, Ext: "tgz", Sep: "-"},
	}}
}

// Dump implements Job.
func (d *Directory) Dump(ctx context.Context, target Target, path string) error {
	_, err := d.Runner.Run(command.Cmd{Name: "tar", Args: d.args(path)})
	return err
}

func (d *Directory) args(path string) []string {
	args := []string{"-czpf", path}
	for _, ex := range d.Exclude {
		args = append(args, "--exclude="+ex)
	}
	return append(args, d.Include...)
}
