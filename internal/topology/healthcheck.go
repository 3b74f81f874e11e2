package topology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/metrics"
	"github.com/jmountifield/vector/internal/plugin"
	"github.com/jmountifield/vector/internal/runtime"
	"github.com/jmountifield/vector/internal/topology/builder"
)

// DefaultHealthcheckTimeout bounds a single healthcheck.
const DefaultHealthcheckTimeout = 10 * time.Second

// Outcome classifies how a healthcheck ended.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	TimedOut
	Cancelled
	Panicked
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	case Panicked:
		return "panicked"
	}
	return "unknown"
}

// HealthcheckResult is the outcome of one sink's healthcheck.
type HealthcheckResult struct {
	Name    string
	Outcome Outcome
	Err     error
}

// OK reports whether the healthcheck passed.
func (r HealthcheckResult) OK() bool {
	return r.Outcome == Passed
}

// RunHealthcheck runs hc as its own runtime task with a timeout. A failure,
// timeout or panic is reported in the result and never propagates.
func RunHealthcheck(ctx context.Context, rt *runtime.Runtime, name string, hc plugin.Healthcheck, timeout time.Duration) HealthcheckResult {
	if timeout <= 0 {
		timeout = DefaultHealthcheckTimeout
	}

	hcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h := rt.SpawnWithContext(hcCtx, "healthcheck:"+name, func(ctx context.Context) error {
		return hc(ctx)
	})

	res := h.Wait(hcCtx)
	if res.Incomplete {
		h.Cancel()
	}

	switch {
	case res.Panicked():
		return HealthcheckResult{Name: name, Outcome: Panicked, Err: res.Err}
	case res.Err == nil:
		return HealthcheckResult{Name: name, Outcome: Passed}
	case errors.Is(hcCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return HealthcheckResult{Name: name, Outcome: TimedOut, Err: fmt.Errorf("healthcheck timed out after %s", timeout)}
	case res.Incomplete || errors.Is(res.Err, context.Canceled):
		return HealthcheckResult{Name: name, Outcome: Cancelled, Err: res.Err}
	}
	return HealthcheckResult{Name: name, Outcome: Failed, Err: res.Err}
}

// runHealthchecks runs checks concurrently and reports every failure in the
// returned error. When required, the first failure cancels the checks still
// running, since the start is already lost.
func runHealthchecks(ctx context.Context, rt *runtime.Runtime, log *logger.Logger, m *metrics.Metrics, checks []builder.NamedHealthcheck, timeout time.Duration, required bool) ([]HealthcheckResult, error) {
	results := make([]HealthcheckResult, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			res := RunHealthcheck(gctx, rt, check.Name, check.Check, timeout)
			results[i] = res
			m.RecordHealthcheck(check.Name, res.Outcome.String())
			logHealthcheck(log, res)
			if required && !res.OK() {
				return res.Err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for _, res := range results {
		if !res.OK() {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("healthchecks failed for %v", failed)
	}
	return results, nil
}

func logHealthcheck(log *logger.Logger, res HealthcheckResult) {
	l := log.WithFields(map[string]any{"component": res.Name, "outcome": res.Outcome.String()})
	switch res.Outcome {
	case Passed:
		l.Info("Healthcheck passed.")
	case Failed:
		l.Error(res.Err, "Healthcheck failed.")
	case TimedOut:
		l.Error(res.Err, "Healthcheck timed out.")
	case Cancelled:
		l.Warn("Healthcheck was cancelled.")
	case Panicked:
		l.Error(res.Err, "Healthcheck panicked.")
	}
}
