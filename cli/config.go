package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/backupflow/config"
	bferrors "github.com/randalmurphal/backupflow/errors"
)

func (a *App) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.resolve(cmd)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, key := range resolved.Keys() {
				value, source := resolved.GetWithSource(key)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", key, config.Mask(key, value), source)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if _, err := config.FromResolved(resolved); err != nil {
				return &exitError{code: 1, err: bferrors.NewConfigError(err.Error())}
			}
			return nil
		},
	}

	cmd.AddCommand(a.newConfigSetCommand(), a.newConfigUnsetCommand())
	return cmd
}

// target is the file config set and unset edit.
func (a *App) target() config.SaveConfig {
	path := a.configFile
	if path == "" {
		path = a.SystemPath
	}
	return config.SaveConfig{Path: path, ValidKeys: config.Keys}
}

func (a *App) newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value in the config file",
		Long: `Set writes key: value into the --config file, or into
` + config.DefaultSystemPath + ` when no file is given. Lists are comma-separated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.target()
			if err := t.Save(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], config.Mask(args[0], args[1]), t.Path)
			return nil
		},
	}
}

func (a *App) newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.target()
			if err := t.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], t.Path)
			return nil
		},
	}
}
