package tool

import (
	"cmp"
	"fmt"
	"slices"
)

// costWarningThreshold is the aggregate estimated cost above which a
// selection carries a budget warning.
const costWarningThreshold = 0.1

// priorityTables rank tool ids per task criticality. Cheap, fast engines
// lead for routine work; the strongest reviewers lead as stakes rise. Ids
// missing from a table rank last, in registration order.
var priorityTables = map[Criticality]map[string]int{
	CriticalityBasic: {
		"codex":       50,
		"gemini_cli":  40,
		"claude_code": 30,
		"opencode":    20,
		"aider":       10,
	},
	CriticalityPremium: {
		"claude_code": 50,
		"codex":       45,
		"gemini_cli":  30,
		"cursor":      20,
		"aider":       10,
	},
	CriticalityCritical: {
		"claude_code": 60,
		"codex":       55,
		"gemini_cli":  40,
		"cursor":      25,
		"aider":       15,
	},
}

// tableFor returns the priority table for a criticality. Unrecognized
// criticalities use the basic table.
func tableFor(c Criticality) map[string]int {
	if t, ok := priorityTables[c]; ok {
		return t
	}
	return priorityTables[CriticalityBasic]
}

// Selected pairs a descriptor with the operations and approval rule that
// apply to it for one request, after contextual mutation.
type Selected struct {
	Descriptor Descriptor
	Operations []string
	Approval   ApprovalRule
}

// Selection is the outcome of Select: accepted tools in selection order
// plus the aggregate cost estimate.
type Selection struct {
	Tools         []Selected
	EstimatedCost float64

	// CostWarning is non-empty when EstimatedCost exceeds the warning
	// threshold.
	CostWarning string
}

// Select ranks the catalog for the given context and returns the tools the
// request may use. Candidates are ordered by the criticality's priority
// table, then walked in order: a candidate is rejected when its security
// tier exceeds the requester's or its readiness probe fails, and accepted
// otherwise until the budget's tool cap is reached. Accepted tools carry
// context-mutated operations and approval rules.
func (r *Registry) Select(rc Context) Selection {
	candidates := r.List()

	table := tableFor(rc.Criticality)
	slices.SortStableFunc(candidates, func(a, b Descriptor) int {
		return cmp.Compare(table[b.ID], table[a.ID])
	})

	maxTools := rc.Budget.MaxTools()
	clearance := rc.Security.Rank()
	calls := rc.CallEstimate
	if calls <= 0 {
		calls = 1
	}

	var sel Selection
	for _, d := range candidates {
		if len(sel.Tools) >= maxTools {
			break
		}
		if d.Security.Rank() > clearance {
			continue
		}
		if d.Ready != nil && !d.Ready() {
			continue
		}
		sel.Tools = append(sel.Tools, mutateForContext(d, rc.Criticality))
		sel.EstimatedCost += d.Cost.PerCallRate() * float64(calls)
	}

	if sel.EstimatedCost > costWarningThreshold {
		sel.CostWarning = fmt.Sprintf("estimated cost %.4f exceeds the %.2f warning threshold",
			sel.EstimatedCost, costWarningThreshold)
	}
	return sel
}

// mutateForContext narrows an accepted descriptor for the request. Basic
// tasks see at most the first three operations. Critical tasks lose blanket
// auto-approval: the rule tightens so only the first two operations still
// run unattended and the rest are gated.
func mutateForContext(d Descriptor, c Criticality) Selected {
	ops := d.Operations
	rule := d.Approval

	switch c {
	case CriticalityBasic:
		if len(ops) > 3 {
			ops = ops[:3]
		}
	case CriticalityCritical:
		if rule.Mode == DecisionNever {
			cut := min(2, len(ops))
			rule = ApprovalRule{
				Never:  slices.Clone(ops[:cut]),
				Always: slices.Clone(ops[cut:]),
			}
		}
	}

	return Selected{Descriptor: d, Operations: ops, Approval: rule}
}
