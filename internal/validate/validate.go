// Package validate checks a set of configuration files the way the running
// process would use them, stage by stage, and reports every problem found.
package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/exitcode"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/runtime"
	"github.com/jmountifield/vector/internal/topology"
	"github.com/jmountifield/vector/internal/topology/builder"
	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// DefaultStopTimeout bounds the drain of the trial topology.
const DefaultStopTimeout = 5 * time.Second

// Options select the stages to run and where the report goes.
type Options struct {
	// Paths are the already expanded configuration files, in order.
	Paths []string

	NoTopology     bool
	NoHealthchecks bool
	NoStart        bool
	DenyWarnings   bool

	Color  bool
	Out    io.Writer
	Logger *logger.Logger

	HealthcheckTimeout time.Duration
	StopTimeout        time.Duration

	// Schema receives the merged log schema. Nil means the process-wide cell.
	Schema *event.SchemaCell
}

type validation struct {
	opts Options
	log  *logger.Logger
	r    *report
}

// Run validates opts.Paths and returns the process exit code.
func Run(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Schema == nil {
		opts.Schema = event.GlobalSchemaCell()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	v := &validation{
		opts: opts,
		log:  opts.Logger,
		r:    newReport(opts.Out, opts.Color, opts.DenyWarnings),
	}
	if v.run(ctx) {
		v.r.plain("Validated")
		return exitcode.OK
	}
	return exitcode.Config
}

func (v *validation) run(ctx context.Context) bool {
	if len(v.opts.Paths) == 0 {
		v.r.plain("x No config file paths")
		return false
	}

	cfg, ok := v.loadConfigs(ctx)
	if !ok {
		return false
	}

	if err := v.opts.Schema.Set(cfg.LogSchema()); err != nil {
		v.log.Error(err, "Log schema was already published.")
	}

	rt, err := runtime.New(1, v.log)
	if err != nil {
		v.r.errorLine(err.Error())
		return false
	}
	defer rt.ShutdownNow(v.opts.StopTimeout)

	diff := config.InitialDiff(cfg)
	base := plugin.BuildContext{LogSchema: cfg.LogSchema(), DataDir: cfg.Global.DataDir, Logger: v.log}

	pieces, errs := builder.Build(base, cfg, diff)
	if len(errs) > 0 {
		v.r.titleLine("Component errors")
		v.r.errors(errs)
		return false
	}
	if warnings := builder.ComponentWarnings(cfg); len(warnings) > 0 {
		v.r.titleLine("Component warnings")
		v.r.warnings(warnings)
		if v.opts.DenyWarnings {
			return false
		}
	}
	v.r.successLine("Configuration options are valid")

	if !v.opts.NoTopology && !v.checkTopology(cfg) {
		return false
	}

	checks := builder.TakeHealthchecks(diff, pieces)
	if !v.opts.NoHealthchecks && !v.runHealthchecks(ctx, rt, checks) {
		return false
	}

	if v.opts.NoStart {
		return true
	}
	return v.trialStart(ctx, rt, cfg, diff, pieces)
}

// loadConfigs parses every file, merges them in path order and expands
// macros. Problems are reported against the file they come from.
func (v *validation) loadConfigs(ctx context.Context) (*config.Config, bool) {
	full := config.Empty()
	success := true

	for _, res := range config.LoadFiles(ctx, v.opts.Paths) {
		if len(res.Errors) > 0 {
			success = false
			v.r.fileHeader(res.Path)
			v.reportLoadErrors(res.Errors)
			continue
		}

		if errs := full.Append(res.Config); len(errs) > 0 {
			success = false
			v.r.fileHeader(res.Path)
			v.r.titleLine("Failed in merging config")
			v.r.errors(errs)
			continue
		}

		v.log.WithFields(map[string]any{"path": res.Path}).Debug("Validation successful.")
	}

	if errs := full.ExpandMacros(); len(errs) > 0 {
		v.r.titleLine("Failed to expand macros")
		v.r.errors(errs)
		return nil, false
	}

	return full, success
}

func (v *validation) reportLoadErrors(errs []error) {
	var fileErr *vectorerrors.FileError
	if len(errs) == 1 && errors.As(errs[0], &fileErr) {
		if fileErr.NotFound {
			v.r.errorLine("File not found")
		} else {
			v.r.errorLine(fmt.Sprintf("Error opening file: %v", fileErr.Err))
		}
		return
	}

	v.r.titleLine("Failed to parse file")
	v.r.errors(errs)
}

// checkTopology reports structural errors. Its warnings are the component
// warnings already reported by the component stage.
func (v *validation) checkTopology(cfg *config.Config) bool {
	_, errs := builder.Check(cfg)
	if len(errs) > 0 {
		v.r.titleLine("Topology errors")
		v.r.errors(errs)
		return false
	}

	v.r.successLine("Configuration topology is valid")
	return true
}

// runHealthchecks runs the checks one after another, so each line of output
// belongs to exactly one sink.
func (v *validation) runHealthchecks(ctx context.Context, rt *runtime.Runtime, checks []builder.NamedHealthcheck) bool {
	if len(checks) == 0 {
		return true
	}

	v.r.titleLine("Health checks")
	success := true
	for _, check := range checks {
		res := topology.RunHealthcheck(ctx, rt, check.Name, check.Check, v.opts.HealthcheckTimeout)
		switch res.Outcome {
		case topology.Passed:
			v.r.successLine(check.Name)
			continue
		case topology.Failed:
			v.r.errorLine(fmt.Sprintf("%s: %v", check.Name, res.Err))
		case topology.TimedOut:
			v.r.errorLine(fmt.Sprintf("for %s did not complete in time", check.Name))
		case topology.Cancelled:
			v.r.errorLine(fmt.Sprintf("for %s was cancelled", check.Name))
		case topology.Panicked:
			v.r.errorLine(fmt.Sprintf("for %s has panicked", check.Name))
		}
		success = false
	}
	return success
}

// trialStart starts the topology and stops it again. A drain that outlives
// StopTimeout is aborted.
func (v *validation) trialStart(ctx context.Context, rt *runtime.Runtime, cfg *config.Config, diff *config.Diff, pieces *builder.Pieces) bool {
	topo, err := topology.Start(ctx, topology.Options{Runtime: rt, Logger: v.log}, cfg, diff, pieces, false)
	if err != nil {
		v.log.Error(err, "Topology failed to start.")
		v.r.errorLine("Topology failed to start")
		return false
	}

	select {
	case <-topo.Stop():
	case <-time.After(v.opts.StopTimeout):
		v.log.Warn("Trial topology did not drain in time; aborting it.")
		topo.Abort()
	}
	return true
}
