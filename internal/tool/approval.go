package tool

import (
	"fmt"
	"slices"
)

// Decision states whether an operation needs approval before it runs.
type Decision string

const (
	// DecisionAlways gates the operation behind approval on every call.
	DecisionAlways Decision = "always"

	// DecisionNever lets the operation run unattended.
	DecisionNever Decision = "never"
)

// ApprovalRule maps a tool's operations to approval decisions. A non-empty
// Mode is a blanket rule covering every operation; otherwise membership in
// the Never, Always, and Conditional lists decides, checked in that order.
// The lists may overlap; the check order is the deterministic tie-break.
type ApprovalRule struct {
	// Mode, when set, applies to all operations unconditionally.
	Mode Decision

	// Never lists operations that run unattended.
	Never []string

	// Always lists operations gated on every call.
	Always []string

	// Conditional lists operations gated only when When holds.
	Conditional []string

	// When is evaluated against the request context for operations in the
	// Conditional list. A conditional operation without a predicate is
	// gated unconditionally.
	When *Predicate
}

// Validate checks the rule's mode and predicate.
func (a ApprovalRule) Validate() error {
	switch a.Mode {
	case "", DecisionAlways, DecisionNever:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidApprovalRule, a.Mode)
	}
	if a.When != nil {
		if err := a.When.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidApprovalRule, err)
		}
	}
	return nil
}

// Resolve returns the decision for one operation. It is total: every
// operation resolves to exactly one decision, and operations the rule does
// not mention are gated as the fail-safe.
func (a ApprovalRule) Resolve(operation string, rc Context) Decision {
	if a.Mode != "" {
		return a.Mode
	}
	switch {
	case slices.Contains(a.Never, operation):
		return DecisionNever
	case slices.Contains(a.Always, operation):
		return DecisionAlways
	case slices.Contains(a.Conditional, operation):
		if a.When == nil || a.When.Eval(rc) {
			return DecisionAlways
		}
		return DecisionNever
	default:
		return DecisionAlways
	}
}

// Resolve looks up a tool and resolves the approval decision for one of its
// operations. Unknown tool ids resolve to DecisionAlways so a stale or
// mistyped id can never bypass approval.
func (r *Registry) Resolve(id, operation string, rc Context) Decision {
	r.mu.RLock()
	d, ok := r.tools[id]
	r.mu.RUnlock()

	if !ok {
		return DecisionAlways
	}
	return d.Approval.Resolve(operation, rc)
}
