package tool

import (
	"fmt"
	"slices"
)

// Predicate is a declarative condition over the request context. Approval
// rules use predicates to gate operations only in specific situations,
// keeping the policy engine free of injected code and testable as data.
type Predicate struct {
	// Field names the context attribute under test.
	Field string

	// Op is the comparison operator.
	Op string

	// Values are the operands. eq, ne, and at_least use the first entry;
	// in and not_in use the full list.
	Values []string
}

// Context fields a predicate may test.
const (
	FieldTaskCriticality = "task_criticality"
	FieldBudgetTier      = "budget_tier"
	FieldSecurityTier    = "security_tier"
)

// Predicate operators.
const (
	OpEq      = "eq"
	OpNe      = "ne"
	OpIn      = "in"
	OpNotIn   = "not_in"
	OpAtLeast = "at_least"
)

// Validate checks the predicate against the closed field and operator sets.
// Registration rejects invalid predicates so they never reach evaluation.
func (p Predicate) Validate() error {
	switch p.Field {
	case FieldTaskCriticality, FieldBudgetTier, FieldSecurityTier:
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidPredicate, p.Field)
	}
	switch p.Op {
	case OpEq, OpNe, OpIn, OpNotIn, OpAtLeast:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidPredicate, p.Op)
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidPredicate)
	}
	if p.Op == OpAtLeast {
		if _, ok := fieldRank(p.Field, p.Values[0]); !ok {
			return fmt.Errorf("%w: %q has no rank for field %q", ErrInvalidPredicate, p.Values[0], p.Field)
		}
	}
	return nil
}

// Eval reports whether the predicate holds for the given context.
// Predicates that would fail Validate evaluate to false.
func (p Predicate) Eval(rc Context) bool {
	value, ok := contextField(rc, p.Field)
	if !ok {
		return false
	}
	switch p.Op {
	case OpEq:
		return len(p.Values) > 0 && value == p.Values[0]
	case OpNe:
		return len(p.Values) > 0 && value != p.Values[0]
	case OpIn:
		return slices.Contains(p.Values, value)
	case OpNotIn:
		return len(p.Values) > 0 && !slices.Contains(p.Values, value)
	case OpAtLeast:
		if len(p.Values) == 0 {
			return false
		}
		have, haveOK := fieldRank(p.Field, value)
		want, wantOK := fieldRank(p.Field, p.Values[0])
		return haveOK && wantOK && have >= want
	default:
		return false
	}
}

func contextField(rc Context, field string) (string, bool) {
	switch field {
	case FieldTaskCriticality:
		return string(rc.Criticality), true
	case FieldBudgetTier:
		return string(rc.Budget), true
	case FieldSecurityTier:
		return string(rc.Security), true
	default:
		return "", false
	}
}

// fieldRank maps an ordered field value to its ordinal position, for the
// at_least operator.
func fieldRank(field, value string) (int, bool) {
	var order []string
	switch field {
	case FieldTaskCriticality:
		order = []string{string(CriticalityBasic), string(CriticalityPremium), string(CriticalityCritical)}
	case FieldBudgetTier:
		order = []string{string(BudgetFree), string(BudgetStandard), string(BudgetPremium)}
	case FieldSecurityTier:
		order = []string{string(SecurityPublic), string(SecurityInternal), string(SecuritySensitive), string(SecurityCritical)}
	default:
		return 0, false
	}
	if i := slices.Index(order, value); i >= 0 {
		return i, true
	}
	return 0, false
}
