package topology

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/runtime"
	"github.com/jmountifield/vector/internal/topology/builder"
	"github.com/jmountifield/vector/pkg/diff"
)

// forceStopGrace is how long a retiring source gets after being cancelled.
const forceStopGrace = time.Second

// ReloadConfigAndRespawn moves the running topology to cfg. It returns false
// with a nil error when cfg is rejected, in which case the running topology
// is exactly as it was. ErrUnrecoverable means the old generation could not
// be retired and the process should shut down.
func (t *RunningTopology) ReloadConfigAndRespawn(ctx context.Context, cfg *config.Config, requireHealthy bool) (bool, error) {
	t.reloadMu.Lock()
	defer t.reloadMu.Unlock()

	t.mu.Lock()
	old := t.config
	stopping := t.stopping
	t.mu.Unlock()

	if stopping {
		return false, errors.New("topology is stopping")
	}

	if old.Global.DataDir != cfg.Global.DataDir || old.LogSchema() != cfg.LogSchema() {
		t.log.Error(nil, "Global options can't be changed while reloading config file; reload aborted. Please restart Vector to reload it.")
		t.metrics.RecordReload("rejected")
		return false, nil
	}

	delta := config.NewDiff(old, cfg)
	base := plugin.BuildContext{LogSchema: cfg.LogSchema(), DataDir: cfg.Global.DataDir, Logger: t.log}

	pieces, warnings, errs := builder.Validate(base, cfg, delta)
	for _, warning := range warnings {
		t.log.Warn(warning)
	}
	if len(errs) > 0 {
		for _, err := range errs {
			t.log.Error(err, "Configuration error.")
		}
		t.metrics.RecordReload("rejected")
		return false, nil
	}

	checks := builder.TakeHealthchecks(delta, pieces)
	if err := t.healthcheck(ctx, checks, requireHealthy); err != nil {
		t.log.Error(err, "Healthchecks failed; keeping the running configuration.")
		t.metrics.RecordReload("rejected")
		return false, nil
	}

	t.logChanges(old, cfg, delta)

	if err := t.retireSources(delta); err != nil {
		t.metrics.RecordReload("failed")
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopping {
		return false, errors.New("topology is stopping")
	}

	released := t.retireConsumers(delta)
	t.spawnDiff(delta, pieces)
	t.config = cfg
	t.connect(cfg)
	for _, in := range released {
		in.release()
	}

	t.generation = uuid.NewString()
	t.updateFinished()
	t.pruneRetiring()
	t.metrics.SetComponentsRunning(len(t.tasks))
	t.metrics.RecordReload("accepted")

	t.log.WithFields(map[string]any{"generation": t.generation, "components": len(t.tasks)}).Info("New configuration loaded.")
	return true, nil
}

// retireSources signals removed and changed sources to stop and waits for
// them, so a changed source never runs next to its replacement.
func (t *RunningTopology) retireSources(delta *config.Diff) error {
	names := delta.Sources.RemovedOrChanged()
	if len(names) == 0 {
		return nil
	}

	t.mu.Lock()
	handles := make([]*runtime.Handle, 0, len(names))
	for _, name := range names {
		tk, ok := t.tasks[name]
		if !ok {
			continue
		}
		delete(t.tasks, name)
		delete(t.sources, name)
		delete(t.outputs, name)
		if ch, ok := t.shutdowns[name]; ok {
			close(ch)
			delete(t.shutdowns, name)
		}
		handles = append(handles, tk.handle)
		t.retiring = append(t.retiring, tk.handle)
	}
	t.mu.Unlock()

	if waitAll(handles, t.opts.ShutdownTimeout) {
		return nil
	}

	t.log.Warn("Failed to gracefully shut down sources in time. Killing them.")
	for _, h := range handles {
		h.Cancel()
	}
	if waitAll(handles, forceStopGrace) {
		return nil
	}
	return ErrUnrecoverable
}

// retireConsumers removes changed and removed transforms and sinks from the
// running set. Their inputs are returned so the caller can release them once
// upstream fanouts point at the replacements. Callers hold t.mu.
func (t *RunningTopology) retireConsumers(delta *config.Diff) []*input {
	var released []*input
	for _, role := range []config.Role{config.RoleTransform, config.RoleSink} {
		for _, name := range delta.Role(role).RemovedOrChanged() {
			if tk, ok := t.tasks[name]; ok {
				delete(t.tasks, name)
				t.retiring = append(t.retiring, tk.handle)
			}
			if in, ok := t.inputs[name]; ok {
				delete(t.inputs, name)
				released = append(released, in)
			}
			delete(t.outputs, name)
		}
	}
	return released
}

func (t *RunningTopology) pruneRetiring() {
	kept := t.retiring[:0]
	for _, h := range t.retiring {
		select {
		case <-h.Done():
		default:
			kept = append(kept, h)
		}
	}
	t.retiring = kept
}

func (t *RunningTopology) logChanges(old, next *config.Config, delta *config.Diff) {
	for _, role := range config.Roles {
		d := delta.Role(role)
		for _, name := range d.ToRemove {
			t.log.WithFields(map[string]any{"component": name, "kind": string(role)}).Info("Removing component.")
		}
		for _, name := range d.ToAdd {
			t.log.WithFields(map[string]any{"component": name, "kind": string(role)}).Info("Adding component.")
		}
		for _, name := range d.ToChange {
			before, _ := config.Canonical(old.Components(role)[name])
			after, _ := config.Canonical(next.Components(role)[name])
			t.log.WithFields(map[string]any{
				"component": name,
				"kind":      string(role),
				"diff":      diff.Unified(before, after, name+" (running)", name+" (new)"),
			}).Info("Rebuilding component.")
		}
	}
}

func waitAll(handles []*runtime.Handle, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, h := range handles {
		if res := h.Wait(ctx); res.Incomplete {
			return false
		}
	}
	return true
}
