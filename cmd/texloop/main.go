// cmd/texloop/main.go
//
// Entry point for the texloop CLI. `texloop paper.tex` compiles the document
// until its auxiliary artifacts stop changing; the subcommands watch, clean,
// status and init cover the rest of the project lifecycle.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errCompileFailed is returned after a fatal outcome has been reported.
var errCompileFailed = errors.New("compile failed")

var (
	flagProgram      string
	flagOutputDir    string
	flagAuxDir       string
	flagMaxPasses    int
	flagNoRerunHints bool
	flagPlain        bool
	flagVerbose      bool

	rootCmd = &cobra.Command{
		Use:   "texloop [source.tex]",
		Short: "Compile LaTeX documents until they converge",
		Long: `texloop runs the typesetting processor, then the bibliography and index
tools it needs, then exactly as many extra passes as the changed artifacts
require. Without a source argument it compiles the single root document in
the current directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCompile,
	}

	compileCmd = &cobra.Command{
		Use:   "compile [source.tex]",
		Short: "Compile a document once",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompile,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagProgram, "program", "p", "", "processor: pdflatex, xelatex, lualatex, latex, platex or uplatex")
	flags.StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for the final PDF")
	flags.StringVar(&flagAuxDir, "aux-dir", "", "directory for auxiliary artifacts between runs")
	flags.IntVarP(&flagMaxPasses, "max-passes", "n", 0, "upper bound on processor passes, the first included")
	flags.BoolVar(&flagNoRerunHints, "no-rerun-hints", false, "ignore rerun requests in the processor log")
	flags.BoolVar(&flagPlain, "plain", false, "print progress lines instead of the interactive view")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "echo tool output and diagnostics to stderr")

	rootCmd.AddCommand(compileCmd, watchCmd, cleanCmd, statusCmd, initCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errCompileFailed) {
			fmt.Fprintf(os.Stderr, "texloop: %v\n", err)
		}
		os.Exit(1)
	}
}
