package executor

import (
	"github.com/rhoai-upgrade/upgrade-helpers/internal/decider"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

// Status is the terminal state of one resource in a run.
type Status string

const (
	StatusOK          Status = "OK"
	StatusPatched     Status = "PATCHED"
	StatusCreated     Status = "CREATED"
	StatusSkipped     Status = "SKIPPED"
	StatusMissing     Status = "MISSING"
	StatusNeedsAction Status = "NEEDS_ACTION"
	StatusFailed      Status = "FAILED"
)

// Succeeded reports whether s counts towards the succeeded total.
func (s Status) Succeeded() bool {
	return s == StatusOK || s == StatusPatched || s == StatusCreated
}

// Outcome is the result for one resource.
type Outcome struct {
	Ref    k8s.Ref
	Class  decider.Classification
	Status Status
	Detail string
	// DryRun is set when the status describes a change that was not sent.
	DryRun bool
}

// Summary is the finalized result of a run. It is built once by Execute and
// not modified afterwards.
type Summary struct {
	Mode     Mode
	Outcomes []Outcome
	counts   map[Status]int
}

func newSummary(mode Mode, outcomes []Outcome) Summary {
	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return Summary{Mode: mode, Outcomes: outcomes, counts: counts}
}

// Count returns the number of outcomes with status s.
func (s Summary) Count(status Status) int {
	return s.counts[status]
}

// Found is the number of resources processed.
func (s Summary) Found() int {
	return len(s.Outcomes)
}

// Succeeded counts OK, PATCHED and CREATED outcomes.
func (s Summary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts FAILED outcomes.
func (s Summary) Failed() int {
	return s.counts[StatusFailed]
}

// FailedRefs lists failed resources in processing order.
func (s Summary) FailedRefs() []k8s.Ref {
	var refs []k8s.Ref
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			refs = append(refs, o.Ref)
		}
	}
	return refs
}

// Changes counts outcomes that mutated (or in simulate mode, would have
// mutated) the cluster.
func (s Summary) Changes() int {
	return s.counts[StatusPatched] + s.counts[StatusCreated]
}
