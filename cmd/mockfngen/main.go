// Mockfngen generates func-slot implementations for the interfaces embedded
// in structs declared in mockfnstub files.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/Versent/go-mockfn/internal/cmd/mockfngen"
)

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log := logrus.WithField("prog", filepath.Base(os.Args[0]))

	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(mockfngen.NewGenCmd(log, flag.NewFlagSet("gen", flag.ContinueOnError)), "")

	ctx := context.Background()

	allCmds := map[string]bool{}
	subcommands.DefaultCommander.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) { allCmds[cmd.Name()] = true })
	// Default to running the "gen" command.
	if args := os.Args[1:]; len(args) == 0 || !allCmds[args[0]] {
		f := flag.NewFlagSet("gen", flag.ContinueOnError)
		genCmd := mockfngen.NewGenCmd(log, f)
		f.Usage = func() {
			cdr := subcommands.DefaultCommander
			cdr.ExplainCommand(cdr.Error, genCmd)
		}
		if f.Parse(args) != nil {
			os.Exit(int(subcommands.ExitUsageError))
		}
		os.Exit(int(genCmd.Execute(ctx, f)))
	}
	flag.Parse()
	os.Exit(int(subcommands.Execute(ctx)))
}
