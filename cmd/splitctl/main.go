// Command splitctl runs receipt extraction locally and manages the database.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/mmynk/splitthat/pkg/logging"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&extractCmd{}, "")
	commander.Register(&migrateCmd{}, "")

	flag.Parse()
	logging.Setup("")
	os.Exit(int(commander.Execute(context.Background())))
}
