// Command backupflow dumps, verifies, compresses and rotates backups.
//
// Usage:
//
//	backupflow run                 # one backup, for cron
//	backupflow rotate              # retention only
//	backupflow verify <path>...    # check existing artifacts
//	backupflow schedule            # in-process cron loop
//	backupflow config              # show resolved settings and their sources
//	backupflow config set <k> <v>  # edit the config file
package main

import (
	"os"

	"github.com/randalmurphal/backupflow/cli"
)

func main() {
	os.Exit(cli.NewApp().Execute(os.Args[1:]))
}
