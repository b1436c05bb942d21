// Package mockfngen implements the gen subcommand of the mockfngen tool.
package mockfngen

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/Versent/go-mockfn/internal/slots"
)

// packages returns the slice of packages to run mockfngen over based on f.
// It defaults to ".".
func packages(f *flag.FlagSet) []string {
	pkgs := f.Args()
	if len(pkgs) == 0 {
		pkgs = []string{"."}
	}
	return pkgs
}

type GenCmd struct {
	log            logrus.FieldLogger
	headerFile     string
	prefixFileName string
	tags           string
}

func NewGenCmd(l logrus.FieldLogger, f *flag.FlagSet) *GenCmd {
	cmd := &GenCmd{log: l}
	cmd.SetFlags(f)
	return cmd
}

func (*GenCmd) Name() string { return "gen" }
func (*GenCmd) Synopsis() string {
	return "generate the mockfn_gen.go file for each package"
}
func (*GenCmd) Usage() string {
	return `gen [-header file] [-tags buildtags] [package ...]

  Given one or more packages, gen creates mockfn_gen.go files for each.

  If no package is listed, it defaults to ".".

`
}
func (cmd *GenCmd) SetFlags(f *flag.FlagSet) {
	if cmd.log == nil {
		cmd.log = logrus.StandardLogger()
	}
	f.StringVar(&cmd.headerFile, "header", "", "path to file to insert as a header in mockfn_gen.go")
	f.StringVar(&cmd.tags, "tags", "", "append build tags to the default mockfnstub")
}

func (cmd *GenCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	var opts slots.GenerateOptions
	err := slots.WithArgs(
		slots.WithEnv(os.Environ()),
		slots.WithArgs(args...),
		slots.WithWDFallback(),
		slots.WithHeaderFile(cmd.headerFile),
		slots.WithPrefixFileName(cmd.prefixFileName),
		slots.WithTags(cmd.tags),
	)(&opts)
	if err != nil {
		cmd.log.Error(err)
		return subcommands.ExitFailure
	}

	outs, errs := slots.Generate(ctx, packages(f), opts)
	if len(errs) > 0 {
		logErrors(cmd.log, errs...)
		cmd.log.Error("generate failed")
		return subcommands.ExitFailure
	}
	if len(outs) == 0 {
		return subcommands.ExitSuccess
	}
	success := true
	for _, out := range outs {
		log := cmd.log.WithField("package", out.PkgPath)
		if len(out.Errs) > 0 {
			logErrors(log, out.Errs...)
			log.Error("generate failed")
			success = false
		}
		if len(out.Content) == 0 {
			// No output. Maybe errors, maybe no stub files.
			continue
		}
		if err := out.Commit(); err == nil {
			log.Infof("wrote %s", out.OutputPath)
		} else {
			log.WithError(err).Errorf("failed to write %s", out.OutputPath)
			success = false
		}
	}
	if !success {
		cmd.log.Error("at least one generate failure")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
