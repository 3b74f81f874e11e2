// Package builder turns component definitions into runnable pieces.
package builder

import (
	"sort"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/plugin"
	vectorerrors "github.com/jmountifield/vector/pkg/errors"
)

// SourcePiece is a constructed, not yet running, source.
type SourcePiece struct {
	Name   string
	Type   string
	Source plugin.Source
}

// TransformPiece is a constructed transform and the names it reads from.
type TransformPiece struct {
	Name      string
	Type      string
	Inputs    []string
	Transform plugin.Transform
}

// SinkPiece is a constructed sink and the names it reads from.
type SinkPiece struct {
	Name   string
	Type   string
	Inputs []string
	Sink   plugin.Sink
}

// Pieces holds everything built for one diff. Each piece is consumed once:
// healthchecks by TakeHealthchecks, the rest by the topology.
type Pieces struct {
	Sources      map[string]*SourcePiece
	Transforms   map[string]*TransformPiece
	Sinks        map[string]*SinkPiece
	Healthchecks map[string]plugin.Healthcheck
}

func newPieces() *Pieces {
	return &Pieces{
		Sources:      make(map[string]*SourcePiece),
		Transforms:   make(map[string]*TransformPiece),
		Sinks:        make(map[string]*SinkPiece),
		Healthchecks: make(map[string]plugin.Healthcheck),
	}
}

// Build constructs the added and changed components of diff. Components the
// diff leaves alone are not touched. Every construction error is returned.
func Build(base plugin.BuildContext, cfg *config.Config, diff *config.Diff) (*Pieces, []error) {
	pieces := newPieces()
	var errs []error

	for _, name := range diff.Sources.ChangedOrAdded() {
		def := cfg.Sources[name]
		factory, err := plugin.GetSource(def.Type)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleSource), name, err))
			continue
		}
		src, err := factory(contextFor(base, config.RoleSource, name), def)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleSource), name, err))
			continue
		}
		pieces.Sources[name] = &SourcePiece{Name: name, Type: def.Type, Source: src}
	}

	for _, name := range diff.Transforms.ChangedOrAdded() {
		def := cfg.Transforms[name]
		factory, err := plugin.GetTransform(def.Type)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleTransform), name, err))
			continue
		}
		tr, err := factory(contextFor(base, config.RoleTransform, name), def)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleTransform), name, err))
			continue
		}
		pieces.Transforms[name] = &TransformPiece{
			Name:      name,
			Type:      def.Type,
			Inputs:    append([]string(nil), def.Inputs...),
			Transform: tr,
		}
	}

	for _, name := range diff.Sinks.ChangedOrAdded() {
		def := cfg.Sinks[name]
		factory, err := plugin.GetSink(def.Type)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleSink), name, err))
			continue
		}
		sink, healthcheck, err := factory(contextFor(base, config.RoleSink, name), def)
		if err != nil {
			errs = append(errs, vectorerrors.NewBuildError(string(config.RoleSink), name, err))
			continue
		}
		pieces.Sinks[name] = &SinkPiece{
			Name:   name,
			Type:   def.Type,
			Inputs: append([]string(nil), def.Inputs...),
			Sink:   sink,
		}
		if healthcheck != nil && def.HealthcheckEnabled() {
			pieces.Healthchecks[name] = healthcheck
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return pieces, nil
}

// Validate runs Check and, when the graph is sound, Build.
func Validate(base plugin.BuildContext, cfg *config.Config, diff *config.Diff) (*Pieces, []string, []error) {
	warnings, errs := Check(cfg)
	if len(errs) > 0 {
		return nil, warnings, errs
	}

	pieces, errs := Build(base, cfg, diff)
	return pieces, warnings, errs
}

func contextFor(base plugin.BuildContext, role config.Role, name string) plugin.BuildContext {
	bc := base
	bc.Name = name
	bc.LogSchema = base.LogSchema.WithDefaults()
	bc.Logger = base.Logger.Component(string(role), name)
	return bc
}

// NamedHealthcheck pairs a sink name with its healthcheck.
type NamedHealthcheck struct {
	Name  string
	Check plugin.Healthcheck
}

// TakeHealthchecks removes and returns, sorted by sink name, the healthchecks
// of sinks the diff adds or changes.
func TakeHealthchecks(diff *config.Diff, pieces *Pieces) []NamedHealthcheck {
	if pieces == nil {
		return nil
	}

	names := diff.Sinks.ChangedOrAdded()
	sort.Strings(names)

	out := make([]NamedHealthcheck, 0, len(names))
	for _, name := range names {
		hc, ok := pieces.Healthchecks[name]
		if !ok {
			continue
		}
		delete(pieces.Healthchecks, name)
		out = append(out, NamedHealthcheck{Name: name, Check: hc})
	}
	return out
}
