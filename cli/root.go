// Package cli implements the backupflow command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/backupflow/command"
	"github.com/randalmurphal/backupflow/config"
	bferrors "github.com/randalmurphal/backupflow/errors"
)

// EnvPrefix is prepended to configuration keys for environment lookup.
const EnvPrefix = "BACKUPFLOW_"

// DefaultEnvFile is loaded before the environment is read, if present.
const DefaultEnvFile = "/etc/backupflow/backupflow.env"

// App holds the state shared by every subcommand.
type App struct {
	configFile string
	envFiles   []string
	overrides  map[string]*string

	// NewRunner builds the runner external tools go through.
	NewRunner func() command.Runner

	// SystemPath overrides config.DefaultSystemPath.
	SystemPath string

	// Now is the clock handed to the pipeline; time.Now if nil.
	Now func() time.Time

	Stdout io.Writer
	Stderr io.Writer
}

// NewApp returns an App wired to the real environment.
func NewApp() *App {
	return &App{
		NewRunner:  func() command.Runner { return command.NewExecRunner() },
		SystemPath: config.DefaultSystemPath,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// overrideFlags maps command-line flags onto configuration keys.
var overrideFlags = []struct {
	name, key, usage string
}{
	{"job", config.KeyJob, "backup job: directory, mariadb or postgresql"},
	{"hostname", config.KeyHostname, "hostname used in artifact names"},
	{"backup-dir", config.KeyBackupDir, "directory artifacts are written to"},
	{"log-dir", config.KeyLogDir, "directory for daily log files (default <backup-dir>/logs)"},
	{"retention", config.KeyRetention, "artifacts kept per set"},
	{"databases", config.KeyDatabases, "comma-separated databases to dump"},
	{"log-level", config.KeyLogLevel, "debug, info, warn or error"},
}

// NewRootCommand builds the command tree.
func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "backupflow",
		Short:         "Dump, verify, compress and rotate backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (overrides "+config.DefaultSystemPath+")")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{DefaultEnvFile}, ".env files loaded before the environment")

	a.overrides = make(map[string]*string, len(overrideFlags))
	for _, f := range overrideFlags {
		a.overrides[f.name] = flags.String(f.name, "", f.usage)
	}

	root.AddCommand(
		a.newRunCommand(),
		a.newRotateCommand(),
		a.newVerifyCommand(),
		a.newScheduleCommand(),
		a.newConfigCommand(),
		a.newNotifyCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit status.
func (a *App) Execute(args []string) int {
	root := a.NewRootCommand()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(a.Stderr, "Error:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// flagValues returns the overrides that were set on the command line.
func (a *App) flagValues(cmd *cobra.Command) map[string]string {
	values := make(map[string]string)
	for _, f := range overrideFlags {
		if cmd.Flags().Changed(f.name) {
			values[f.key] = *a.overrides[f.name]
		}
	}
	return values
}

func (a *App) resolver() *config.Resolver {
	return config.NewResolver(config.ResolverConfig{
		EnvPrefix:  EnvPrefix,
		SystemPath: a.SystemPath,
		FilePath:   a.configFile,
		EnvFiles:   a.envFiles,
		Defaults:   config.Defaults(),
		ValidKeys:  config.Keys,
		ErrWriter:  a.Stderr,
	})
}

// resolve layers every configuration source.
func (a *App) resolve(cmd *cobra.Command) (*config.Resolved, error) {
	resolved, err := a.resolver().ResolveWithFlags(a.flagValues(cmd))
	if err != nil {
		return nil, &exitError{code: 1, err: bferrors.NewConfigError(err.Error())}
	}
	return resolved, nil
}

// settings resolves and validates the configuration.
func (a *App) settings(cmd *cobra.Command) (config.Settings, error) {
	resolved, err := a.resolve(cmd)
	if err != nil {
		return config.Settings{}, err
	}
	s, err := config.FromResolved(resolved)
	if err != nil {
		return s, &exitError{code: 1, err: bferrors.NewConfigError(err.Error())}
	}
	return s, nil
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
