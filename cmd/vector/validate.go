package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/exitcode"
	"github.com/jmountifield/vector/internal/validate"
)

type validateFlags struct {
	noTopology     bool
	noHealthchecks bool
	noStart        bool
	denyWarnings   bool
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	opts := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Validate the target config, then exit",
		Long: "Validate the target config, then exit. If no paths are given the default config path " +
			config.DefaultPath + " is targeted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitWith(runValidate(cmd, root, opts, args))
		},
	}

	cmd.Flags().BoolVar(&opts.noTopology, "no-topology", false, "Disables topology check")
	cmd.Flags().BoolVar(&opts.noHealthchecks, "no-healthchecks", false, "Disables healthchecks")
	cmd.Flags().BoolVar(&opts.noStart, "no-start", false, "Skips starting the topology")
	cmd.Flags().BoolVarP(&opts.denyWarnings, "deny-warnings", "d", false, "Fail validation on warnings")

	return cmd
}

func runValidate(cmd *cobra.Command, root *rootFlags, opts *validateFlags, args []string) int {
	log, color, err := root.newLogger(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return exitcode.Usage
	}

	paths, err := config.ExpandPaths(args)
	if err != nil {
		log.Error(err, "Invalid config path.")
		return exitcode.Config
	}

	if err := pathsCell.Set(paths); err != nil {
		log.Error(err, "Config paths were already published.")
		return exitcode.Software
	}

	return validate.Run(cmd.Context(), validate.Options{
		Paths:          paths,
		NoTopology:     opts.noTopology,
		NoHealthchecks: opts.noHealthchecks,
		NoStart:        opts.noStart,
		DenyWarnings:   opts.denyWarnings,
		Color:          color,
		Out:            cmd.OutOrStdout(),
		Logger:         log,
		Schema:         schemaCell,
	})
}
