package fanout

import (
	"sort"
	"strings"

	"killrvideo/domain/events"
	"killrvideo/infrastructure/persistence/abstractions"
)

// Write is one physical statement and the target name it is reported under
type Write struct {
	Target string
	Stmt   abstractions.Statement
}

// Unit is the smallest retryable piece of a plan: a single independent write,
// or an atomic group whose writes are applied together or not at all.
type Unit struct {
	Name   string
	Atomic bool
	Writes []Write

	// Gate units run first, in order. Until every gate has applied or been
	// skipped no other unit of the plan is attempted.
	Gate bool

	// Claim turns an append into ownership of a unique key
	Claim *Claim

	// SubmissionID guards a counter write against duplicate delivery
	SubmissionID string
}

// Claim is the owner check of an append on a unique key. Finding the row
// already stored with the same owner counts as applied; any other owner is a
// conflict.
type Claim struct {
	Column string
	Owner  interface{}
}

// Targets returns the target names of the unit's writes
func (u Unit) Targets() []string {
	out := make([]string, 0, len(u.Writes))
	for _, w := range u.Writes {
		out = append(out, w.Target)
	}
	return out
}

// Plan is the full, deterministic set of writes for one mutation. Every id
// and timestamp is fixed before the plan is built, so re-running a unit
// writes identical rows.
type Plan struct {
	Mutation string
	Units    []Unit

	// Skipped lists targets decided at planning time not to need a write
	Skipped map[string]string

	Events []events.DomainEvent
}

func newPlan(mutation string) *Plan {
	return &Plan{Mutation: mutation, Skipped: make(map[string]string)}
}

func (p *Plan) single(target string, st abstractions.Statement) *Plan {
	p.Units = append(p.Units, Unit{Name: target, Writes: []Write{{Target: target, Stmt: st}}})
	return p
}

func (p *Plan) gate(u Unit) *Plan {
	u.Gate = true
	p.Units = append(p.Units, u)
	return p
}

func (p *Plan) atomic(name string, writes ...Write) *Plan {
	p.Units = append(p.Units, Unit{Name: name, Atomic: true, Writes: writes})
	return p
}

func (p *Plan) skip(target, reason string) *Plan {
	p.Skipped[target] = reason
	return p
}

func (p *Plan) emit(e events.DomainEvent) *Plan {
	p.Events = append(p.Events, e)
	return p
}

// Targets returns every target of the plan, sorted
func (p *Plan) Targets() []string {
	var out []string
	for _, u := range p.Units {
		out = append(out, u.Targets()...)
	}
	for t := range p.Skipped {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// target names a write. Rows repeated per element (one per tag) carry the
// element after a colon.
func target(table string, elem ...string) string {
	if len(elem) == 0 {
		return table
	}
	return table + ":" + strings.Join(elem, ":")
}
