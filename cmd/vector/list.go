package main

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/plugin"
)

type listOptions struct {
	format string
}

type componentList struct {
	Sources    []string `json:"sources"`
	Transforms []string `json:"transforms"`
	Sinks      []string `json:"sinks"`
}

func newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available components, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	return cmd
}

func availableComponents() componentList {
	return componentList{
		Sources:    plugin.Registered(config.RoleSource),
		Transforms: plugin.Registered(config.RoleTransform),
		Sinks:      plugin.Registered(config.RoleSink),
	}
}

func runList(out io.Writer, opts *listOptions) error {
	list := availableComponents()

	switch opts.format {
	case "json":
		encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	case "text":
		renderSection(out, "Sources", list.Sources)
		fmt.Fprintln(out)
		renderSection(out, "Transforms", list.Transforms)
		fmt.Fprintln(out)
		renderSection(out, "Sinks", list.Sinks)
		return nil
	}
	return fmt.Errorf("unknown format %q, expected text or json", opts.format)
}

func renderSection(out io.Writer, title string, names []string) {
	fmt.Fprintf(out, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(out, "- %s\n", name)
	}
}
