package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/backupflow/artifact"
)

func (a *App) newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>...",
		Short: "Check that artifacts exist, are non-empty and decompress cleanly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bad := 0
			for _, path := range args {
				if err := verifyOne(path); err != nil {
					bad++
					fmt.Fprintf(out, "FAIL  %s: %v\n", path, err)
					continue
				}
				sum, err := artifact.Checksum(path)
				if err != nil {
					bad++
					fmt.Fprintf(out, "FAIL  %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "OK    %s  blake2b:%s\n", path, sum)
			}
			if bad > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d artifact(s) failed verification", bad, len(args))}
			}
			return nil
		},
	}
}

func verifyOne(path string) error {
	if !artifact.Verify(path) {
		if fileExists(path) {
			return fmt.Errorf("empty")
		}
		return fmt.Errorf("missing")
	}
	return artifact.CheckArchive(path)
}
