package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/exitcode"
	"github.com/jmountifield/vector/internal/plugin"
)

const generatedDataDir = "/var/lib/vector/"

type generateOptions struct {
	fragment bool
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <sources>/<transforms>/<sinks>",
		Short: "Generate a Vector configuration containing a list of components",
		Long: "Generate a Vector configuration containing a list of components.\n\n" +
			"Each section is a comma separated list of component types, for example\n" +
			"'stdin/filter,add_fields/console'. Transforms are chained in order and\n" +
			"sinks read from the last transform, or from every source when there are\n" +
			"no transforms. Sections may be empty: 'stdin//console'.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitWith(runGenerate(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts))
		},
	}

	cmd.Flags().BoolVarP(&opts.fragment, "fragment", "f", false, "Omit global options so the output can be merged into an existing config")

	return cmd
}

func runGenerate(out, errOut io.Writer, expression string, opts *generateOptions) int {
	cfg, errs := generateConfig(expression, opts.fragment)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(errOut, "Generate error: %v\n", err)
		}
		return exitcode.Config
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		fmt.Fprintf(errOut, "Generate error: %v\n", err)
		return exitcode.Software
	}
	if err := enc.Close(); err != nil {
		fmt.Fprintf(errOut, "Generate error: %v\n", err)
		return exitcode.Software
	}
	return exitcode.OK
}

// generateConfig builds a skeleton configuration from a
// sources/transforms/sinks expression. Components are named after their role
// and position.
func generateConfig(expression string, fragment bool) (*config.Config, []error) {
	sections := strings.Split(expression, "/")
	if len(sections) > len(config.Roles) {
		return nil, []error{fmt.Errorf("expected at most %d sections separated by '/', got %d", len(config.Roles), len(sections))}
	}

	types := make(map[config.Role][]string, len(config.Roles))
	var errs []error
	for i, section := range sections {
		role := config.Roles[i]
		for _, typ := range strings.Split(section, ",") {
			typ = strings.TrimSpace(typ)
			if typ == "" {
				continue
			}
			if !plugin.IsRegistered(role, typ) {
				errs = append(errs, plugin.ErrPluginNotFound{Role: role, Type: typ})
				continue
			}
			types[role] = append(types[role], typ)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	cfg := config.Empty()
	if !fragment {
		cfg.Global.DataDir = generatedDataDir
	}

	var sourceNames []string
	for i, typ := range types[config.RoleSource] {
		name := fmt.Sprintf("source%d", i)
		cfg.Sources[name] = config.ComponentConfig{Type: typ}
		sourceNames = append(sourceNames, name)
	}

	upstream := sourceNames
	for i, typ := range types[config.RoleTransform] {
		name := fmt.Sprintf("transform%d", i)
		cfg.Transforms[name] = config.ComponentConfig{Type: typ, Inputs: append([]string(nil), upstream...)}
		upstream = []string{name}
	}

	for i, typ := range types[config.RoleSink] {
		name := fmt.Sprintf("sink%d", i)
		cfg.Sinks[name] = config.ComponentConfig{Type: typ, Inputs: append([]string(nil), upstream...)}
	}

	return cfg, nil
}
