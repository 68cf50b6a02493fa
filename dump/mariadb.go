package dump

import (
	"context"
	"time"

	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/command"
)

// MariaDB dumps databases with mariadb-dump using a client defaults file
// for credentials.
type MariaDB struct {
	DefaultsFile string
	Databases    []string // Empty means --all-databases
	Compress     bool
	Runner       command.Runner
}

// Kind implements Job.
func (m *MariaDB) Kind() string { return "mariadb" }

// Title implements Job.
func (m *MariaDB) Title() string { return "MariaDB Backup" }

// Preflight implements Job. mariadb-check must pass for every database.
func (m *MariaDB) Preflight(ctx context.Context) error {
	_, err := m.Runner.Run(command.Cmd{
		Name: "mariadb-check",
		Args: []string{m.defaultsArg(), "--all-databases"},
	})
	return err
}

// Targets implements Job.
func (m *MariaDB) Targets(host string, date time.Time) []Target {
	return []Target{{
		Label:    "SQL backup",
		Name:     artifact.Name{Host: host, Date: date, Ext: "sql", Sep: "_"},
		Compress: m.Compress,
	}}
}

// Dump implements Job.
func (m *MariaDB) Dump(ctx context.Context, target Target, path string) error {
	_, err := m.Runner.Run(command.Cmd{
		Name:       "mariadb-dump",
		Args:       m.dumpArgs(),
		OutputFile: path,
	})
	return err
}

// defaultsArg must stay the first argument; the client tools reject it elsewhere.
func (m *MariaDB) defaultsArg() string {
	return "--defaults-file=" + ExpandHome(m.DefaultsFile)
}

func (m *MariaDB) dumpArgs() []string {
	args := []string{
		m.defaultsArg(),
		"--skip-ssl",
		"--single-transaction",
		"--flush-logs",
		"--events",
		"--routines",
	}
	if len(m.Databases) == 0 {
		return append(args, "--all-databases")
	}
	args = append(args, "--databases")
	return append(args, m.Databases...)
}
