package fanout

import (
	"sort"

	"killrvideo/pkg/errors"
)

// Status is the result of one fan-out target
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TargetResult is the outcome of one target
type TargetResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	err error
}

// Err returns the error that failed or skipped the target
func (r TargetResult) Err() error {
	return r.err
}

func applied() TargetResult {
	return TargetResult{Status: StatusApplied}
}

func failed(err error) TargetResult {
	return TargetResult{Status: StatusFailed, Error: err.Error(), err: err}
}

func skipped(err error) TargetResult {
	r := TargetResult{Status: StatusSkipped}
	if err != nil {
		r.Error = err.Error()
		r.err = err
	}
	return r
}

// Outcome reports every target of one mutation. It keeps the plan so the
// failed subset can be retried.
type Outcome struct {
	Mutation string                  `json:"mutation"`
	Results  map[string]TargetResult `json:"results"`

	plan *Plan
}

func newOutcome(plan *Plan) *Outcome {
	o := &Outcome{
		Mutation: plan.Mutation,
		Results:  make(map[string]TargetResult, len(plan.Units)),
		plan:     plan,
	}
	for t, reason := range plan.Skipped {
		o.Results[t] = TargetResult{Status: StatusSkipped, Error: reason}
	}
	return o
}

func (o *Outcome) record(results map[string]TargetResult) {
	for t, r := range results {
		o.Results[t] = r
	}
}

// rejection returns the conflict of a gate that lost its unique key
func (o *Outcome) rejection() error {
	for _, u := range o.plan.Units {
		if !u.Gate {
			continue
		}
		if r := o.Results[u.Writes[0].Target]; r.Status == StatusFailed && errors.IsConflict(r.err) {
			return r.err
		}
	}
	return nil
}

// Plan returns the plan the outcome was produced from
func (o *Outcome) Plan() *Plan {
	return o.plan
}

func (o *Outcome) with(status Status) []string {
	var out []string
	for t, r := range o.Results {
		if r.Status == status {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Applied returns the applied targets, sorted
func (o *Outcome) Applied() []string { return o.with(StatusApplied) }

// Failed returns the failed targets, sorted
func (o *Outcome) Failed() []string { return o.with(StatusFailed) }

// Skipped returns the skipped targets, sorted
func (o *Outcome) Skipped() []string { return o.with(StatusSkipped) }

// Complete reports whether no target failed
func (o *Outcome) Complete() bool {
	return len(o.Failed()) == 0
}

// failedUnits returns the plan units with at least one failed target
func (o *Outcome) failedUnits() []Unit {
	var out []Unit
	for _, u := range o.plan.Units {
		for _, w := range u.Writes {
			if o.Results[w.Target].Status == StatusFailed {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// Err summarizes the outcome. A failed atomic group that was the only failure
// is an atomic group error; any other failure is a partial fan-out failure
// carrying the failed target set.
func (o *Outcome) Err() error {
	units := o.failedUnits()
	if len(units) == 0 {
		return nil
	}
	cause := o.Results[units[0].Writes[0].Target].err

	if len(units) == 1 && units[0].Atomic {
		return errors.NewAtomicGroupError(units[0].Name, units[0].Targets(), cause)
	}

	var succeeded []string
	succeeded = append(succeeded, o.Applied()...)
	succeeded = append(succeeded, o.Skipped()...)
	err := errors.NewPartialFanoutError(o.Mutation, o.Failed(), succeeded)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

// result labels the overall outcome for metrics
func (o *Outcome) result() string {
	switch err := o.Err(); {
	case err == nil:
		return "applied"
	case errors.IsAtomicGroup(err):
		return "atomic_failed"
	}
	return "partial"
}
