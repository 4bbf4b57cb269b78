// Package decider compares observed cluster state against the desired state
// and classifies each managed resource. Everything here is pure: no cluster
// access, no logging.
package decider

import "github.com/rhoai-upgrade/upgrade-helpers/internal/locator"

// Classification is the convergence verdict for a single resource.
type Classification int

const (
	// Unknown is the state before classification.
	Unknown Classification = iota
	// Converged means observed state already matches the desired state.
	Converged
	// NeedsAction means the resource exists but differs.
	NeedsAction
	// Missing means the resource does not exist.
	Missing
)

func (c Classification) String() string {
	switch c {
	case Converged:
		return "CONVERGED"
	case NeedsAction:
		return "NEEDS_ACTION"
	case Missing:
		return "MISSING"
	default:
		return "UNKNOWN"
	}
}

// ObservedProbeState is the readiness probe location read from a workload.
type ObservedProbeState struct {
	Path locator.Field
	Port locator.Field
}

// Classify compares a workload's readiness probe against desired. A nil
// observed state means the workload does not exist.
//
// Path and port are compared as literal strings; no normalization is done, so
// "08034" or a named port never match "8034". An int 8034 and a string "8034"
// render identically and both match.
func Classify(desired DesiredProbe, observed *ObservedProbeState) Classification {
	if observed == nil {
		return Missing
	}
	if !observed.Path.Present || !observed.Port.Present {
		return NeedsAction
	}
	if observed.Path.Value == desired.Path && observed.Port.Value == desired.Port {
		return Converged
	}
	return NeedsAction
}
