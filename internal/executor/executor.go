// Package executor turns classified resources into cluster mutations and
// collects one Outcome per resource.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/metrics"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/util/retry"
)

// DefaultRolloutTimeout bounds the wait for a patched resource to become ready.
const DefaultRolloutTimeout = 120 * time.Second

// Mode selects what Execute does with resources that need action.
type Mode int

const (
	// Inspect classifies only.
	Inspect Mode = iota
	// Apply sends patches and creates.
	Apply
	// Simulate reports what Apply would do without sending anything.
	Simulate
)

func (m Mode) String() string {
	switch m {
	case Inspect:
		return "inspect"
	case Apply:
		return "apply"
	case Simulate:
		return "simulate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name back into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "inspect", "check":
		return Inspect, nil
	case "apply", "fix":
		return Apply, nil
	case "simulate", "dry-run":
		return Simulate, nil
	default:
		return Inspect, fmt.Errorf("unknown mode %q", s)
	}
}

// Step is one classified resource and the change that converges it.
type Step struct {
	Ref   k8s.Ref
	Class decider.Classification
	// Detail is carried into the outcome, e.g. the observed value or drift.
	Detail string

	PatchType types.PatchType
	Patch     []byte
	// Create is the full object to create when the resource is missing. Steps
	// without it are skipped when missing.
	Create *unstructured.Unstructured

	WaitRollout bool
}

// Executor runs steps against a cluster.
type Executor struct {
	cluster        k8s.Cluster
	mode           Mode
	rolloutTimeout time.Duration
	retryOpts      []retry.Option
	recorder       *metrics.Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithRolloutTimeout overrides DefaultRolloutTimeout.
func WithRolloutTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.rolloutTimeout = d
		}
	}
}

// WithRetry sets the backoff used for patch and create calls.
func WithRetry(opts ...retry.Option) Option {
	return func(e *Executor) {
		e.retryOpts = opts
	}
}

// WithMetrics records outcomes and API calls on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

// New creates an Executor for mode.
func New(cluster k8s.Cluster, mode Mode, opts ...Option) *Executor {
	e := &Executor{
		cluster:        cluster,
		mode:           mode,
		rolloutTimeout: DefaultRolloutTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute processes steps in order. A failure on one step is recorded in its
// outcome and never stops the remaining steps.
func (e *Executor) Execute(ctx context.Context, steps []Step) Summary {
	outcomes := make([]Outcome, 0, len(steps))
	for _, step := range steps {
		o := e.run(ctx, step)
		e.recorder.RecordOutcome(step.Ref.Kind.String(), string(o.Status))
		outcomes = append(outcomes, o)
	}
	return newSummary(e.mode, outcomes)
}

func (e *Executor) run(ctx context.Context, step Step) Outcome {
	logger := log.FromContext(ctx).WithValues("resource", step.Ref.String(), "mode", e.mode.String())
	out := Outcome{Ref: step.Ref, Class: step.Class, Detail: step.Detail}

	switch step.Class {
	case decider.Converged:
		logger.V(1).Info("already converged")
		out.Status = StatusOK
		return out

	case decider.Missing:
		switch {
		case e.mode == Inspect:
			out.Status = StatusMissing
		case step.Create == nil:
			logger.Info("resource not found, skipping")
			out.Status = StatusSkipped
			if out.Detail == "" {
				out.Detail = "not found"
			}
		case e.mode == Simulate:
			logger.Info("would create")
			out.Status = StatusCreated
			out.DryRun = true
		default:
			e.create(ctx, step, &out)
		}
		return out

	case decider.NeedsAction:
		switch e.mode {
		case Inspect:
			out.Status = StatusNeedsAction
		case Simulate:
			logger.Info("would patch")
			out.Status = StatusPatched
			out.DryRun = true
		default:
			e.patch(ctx, step, &out)
		}
		return out

	default:
		out.Status = StatusFailed
		if out.Detail == "" {
			out.Detail = fmt.Sprintf("unclassified resource (%s)", step.Class)
		}
		return out
	}
}

func (e *Executor) create(ctx context.Context, step Step, out *Outcome) {
	logger := log.FromContext(ctx).WithValues("resource", step.Ref.String())

	err := retry.API(ctx, func() error {
		return e.cluster.Create(ctx, step.Create.DeepCopy())
	}, e.retryOpts...)
	e.recorder.RecordWrite("create", err)
	if err != nil {
		logger.Error(err, "create failed")
		out.Status = StatusFailed
		out.Detail = fmt.Sprintf("create failed: %v", err)
		return
	}
	logger.Info("created")

	if !e.waitRollout(ctx, step, out) {
		return
	}
	out.Status = StatusCreated
}

func (e *Executor) patch(ctx context.Context, step Step, out *Outcome) {
	logger := log.FromContext(ctx).WithValues("resource", step.Ref.String())

	err := retry.API(ctx, func() error {
		return e.cluster.Patch(ctx, step.Ref, step.PatchType, step.Patch)
	}, e.retryOpts...)
	e.recorder.RecordWrite("patch", err)
	if err != nil {
		logger.Error(err, "patch failed")
		out.Status = StatusFailed
		out.Detail = fmt.Sprintf("patch failed: %v", err)
		return
	}
	logger.Info("patched")

	if !e.waitRollout(ctx, step, out) {
		return
	}
	out.Status = StatusPatched
}

// waitRollout blocks until the resource is ready when the step asks for it.
// It marks out as failed and returns false on timeout.
func (e *Executor) waitRollout(ctx context.Context, step Step, out *Outcome) bool {
	if !step.WaitRollout {
		return true
	}
	logger := log.FromContext(ctx).WithValues("resource", step.Ref.String())
	logger.Info("waiting for rollout", "timeout", e.rolloutTimeout)

	start := time.Now()
	err := e.cluster.WaitReady(ctx, step.Ref, e.rolloutTimeout)
	e.recorder.ObserveRollout(step.Ref.Kind.String(), time.Since(start))
	if err != nil {
		logger.Error(err, "rollout did not complete")
		out.Status = StatusFailed
		out.Detail = fmt.Sprintf("rollout did not complete: %v", err)
		return false
	}
	return true
}
