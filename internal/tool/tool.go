// Package tool implements the consultation tool catalog: priority-ranked
// selection per task context, budget capping, security gating, and
// per-operation approval policy. Tools are the cost and security boundary
// for consultations; nothing reaches an engine except through a selected
// tool with a resolved approval decision.
package tool

import "fmt"

// CostTier buckets a tool's per-call spend.
type CostTier string

// Cost tiers from cheapest to most expensive.
const (
	CostFree   CostTier = "free"
	CostLow    CostTier = "low"
	CostMedium CostTier = "medium"
	CostHigh   CostTier = "high"
)

// PerCallRate returns the assumed rate for a single call at this tier.
func (c CostTier) PerCallRate() float64 {
	switch c {
	case CostLow:
		return 0.0001
	case CostMedium:
		return 0.001
	case CostHigh:
		return 0.01
	default:
		return 0
	}
}

func (c CostTier) isValid() bool {
	switch c {
	case CostFree, CostLow, CostMedium, CostHigh:
		return true
	default:
		return false
	}
}

// SecurityTier is an ordinal sensitivity classification. A tool is eligible
// for a request only when its tier does not exceed the requester's.
type SecurityTier string

// Security tiers from least to most sensitive.
const (
	SecurityPublic    SecurityTier = "public"
	SecurityInternal  SecurityTier = "internal"
	SecuritySensitive SecurityTier = "sensitive"
	SecurityCritical  SecurityTier = "critical"
)

// Rank returns the tier's ordinal position. Unknown tiers rank lowest, so a
// requester with an unrecognized tier clears nothing above public.
func (s SecurityTier) Rank() int {
	switch s {
	case SecurityInternal:
		return 1
	case SecuritySensitive:
		return 2
	case SecurityCritical:
		return 3
	default:
		return 0
	}
}

func (s SecurityTier) isValid() bool {
	switch s {
	case SecurityPublic, SecurityInternal, SecuritySensitive, SecurityCritical:
		return true
	default:
		return false
	}
}

// Criticality classifies the stakes of a consultation task. It picks the
// selection priority table and drives the contextual mutations applied to
// accepted tools.
type Criticality string

// Task criticalities from routine to high-stakes.
const (
	CriticalityBasic    Criticality = "basic"
	CriticalityPremium  Criticality = "premium"
	CriticalityCritical Criticality = "critical"
)

// BudgetTier is the caller-assigned spending category bounding how many
// tools one request may select.
type BudgetTier string

// Budget tiers.
const (
	BudgetFree     BudgetTier = "free"
	BudgetStandard BudgetTier = "standard"
	BudgetPremium  BudgetTier = "premium"
)

// MaxTools returns the selection cap for the tier. Unknown tiers get the
// tightest cap.
func (b BudgetTier) MaxTools() int {
	switch b {
	case BudgetStandard:
		return 3
	case BudgetPremium:
		return 6
	default:
		return 1
	}
}

// Context describes one consultation request to the policy engine.
type Context struct {
	// Criticality selects the priority table and contextual mutations.
	Criticality Criticality

	// Budget caps how many tools the request may select.
	Budget BudgetTier

	// Security is the requester's clearance.
	Security SecurityTier

	// CallEstimate is the assumed number of calls per selected tool for
	// cost estimation. Zero means one.
	CallEstimate int
}

// Descriptor describes one consultation tool in the catalog.
type Descriptor struct {
	// ID uniquely identifies the tool.
	ID string

	// Label is a human-readable display name.
	Label string

	// Operations lists what the tool may do, in preference order.
	// Selection narrows this list for low-criticality requests.
	Operations []string

	// Cost is the tool's spend bucket.
	Cost CostTier

	// Security gates eligibility against the requester's tier.
	Security SecurityTier

	// Approval decides which operations need sign-off before they run.
	Approval ApprovalRule

	// Engine names the consultation engine this tool drives, if any.
	Engine string

	// Ready reports whether the tool's external requirements (credentials,
	// feature flags) are currently satisfied. Nil means always ready.
	Ready func() bool
}

func (d Descriptor) validate() error {
	if len(d.Operations) == 0 {
		return ErrNoOperations
	}
	if !d.Cost.isValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCostTier, d.Cost)
	}
	if !d.Security.isValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSecurityTier, d.Security)
	}
	return d.Approval.Validate()
}
