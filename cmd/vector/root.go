package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/exitcode"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/runtime"
)

// Process-wide write-once cells, replaced in tests.
var (
	pathsCell  = config.GlobalPathsCell()
	schemaCell = event.GlobalSchemaCell()
)

type rootFlags struct {
	verbose   int
	quiet     int
	logFormat string
	color     string
}

type runFlags struct {
	configs        []string
	requireHealthy bool
	threads        int
	watchConfig    bool
	metricsAddr    string
}

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWith(code int) error {
	if code == exitcode.OK {
		return nil
	}
	return exitError{code: code}
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitcode.OK
	}

	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(stderr, err)
	return exitcode.Usage
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	run := &runFlags{}

	cmd := &cobra.Command{
		Use:           "vector",
		Short:         "Vector is a high-performance observability data router",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threads") {
				run.threads = runtime.DefaultThreads()
			}
			return exitWith(runServe(cmd, flags, run))
		},
	}

	cmd.Flags().StringArrayVarP(&run.configs, "config", "c", nil, "Read configuration from one or more files. Wildcard paths are supported")
	cmd.Flags().BoolVarP(&run.requireHealthy, "require-healthy", "r", false, "Exit on startup if any sinks fail healthchecks")
	cmd.Flags().IntVarP(&run.threads, "threads", "t", 0, "Number of threads to use for processing (default is number of available cores)")
	cmd.Flags().BoolVarP(&run.watchConfig, "watch-config", "w", false, "Watch for changes in configuration files, and reload accordingly")
	cmd.Flags().StringVar(&run.metricsAddr, "metrics-addr", "", "Serve internal metrics on this address, e.g. 127.0.0.1:9598")

	cmd.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "Enable more detailed internal logging. Repeat to increase level. Overridden by --quiet")
	cmd.PersistentFlags().CountVarP(&flags.quiet, "quiet", "q", "Reduce detail of internal logging. Repeat to reduce further. Overrides --verbose")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", logger.FormatText, "Set the logging format: text or json")
	cmd.PersistentFlags().StringVar(&flags.color, "color", "auto", "Control when ANSI terminal formatting is used: auto, always or never")

	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// colorEnabled resolves --color. Auto enables color when stdout is a terminal.
func (f *rootFlags) colorEnabled(stdout io.Writer) (bool, error) {
	switch f.color {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return isTerminal(stdout), nil
	}
	return false, fmt.Errorf("%s is not a valid option, expected `auto`, `always` or `never`", f.color)
}

// newLogger builds the process logger from the shared flags.
func (f *rootFlags) newLogger(cmd *cobra.Command) (*logger.Logger, bool, error) {
	color, err := f.colorEnabled(cmd.OutOrStdout())
	if err != nil {
		return nil, false, err
	}

	switch f.logFormat {
	case logger.FormatText, logger.FormatJSON:
	default:
		return nil, false, fmt.Errorf("%s is not a valid option, expected `text` or `json`", f.logFormat)
	}

	log, err := logger.New(logger.Options{
		Level:  logger.LevelFromFlags(f.verbose, f.quiet),
		Format: f.logFormat,
		Color:  color,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, false, err
	}
	return log, color, nil
}

func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}
