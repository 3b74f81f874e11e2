package main

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "vector %s (%s %s/%s)\ncommit: %s\nbuilt: %s\n",
				version, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH, commit, date)
			return nil
		},
	}
}
