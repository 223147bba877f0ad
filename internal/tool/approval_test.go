package tool

import "testing"

func TestApprovalRule_PrecedenceOrder(t *testing.T) {
	t.Parallel()

	rule := ApprovalRule{
		Never:       []string{"alpha", "beta"},
		Always:      []string{"beta", "gamma"},
		Conditional: []string{"gamma", "alpha", "delta"},
	}

	tests := []struct {
		operation string
		want      Decision
	}{
		{"alpha", DecisionNever},  // never beats conditional
		{"beta", DecisionNever},   // never beats always
		{"gamma", DecisionAlways}, // always beats conditional
		{"delta", DecisionAlways}, // conditional without a predicate gates
		{"omega", DecisionAlways}, // unlisted gates
	}
	for _, tt := range tests {
		if got := rule.Resolve(tt.operation, Context{}); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.operation, got, tt.want)
		}
	}
}

func TestApprovalRule_BlanketModeWinsOverLists(t *testing.T) {
	t.Parallel()

	rule := ApprovalRule{
		Mode:  DecisionAlways,
		Never: []string{"deploy"},
	}
	if got := rule.Resolve("deploy", Context{}); got != DecisionAlways {
		t.Errorf("blanket always: got %q, want %q", got, DecisionAlways)
	}

	rule = ApprovalRule{
		Mode:   DecisionNever,
		Always: []string{"deploy"},
	}
	if got := rule.Resolve("deploy", Context{}); got != DecisionNever {
		t.Errorf("blanket never: got %q, want %q", got, DecisionNever)
	}
}

func TestApprovalRule_ConditionalPredicate(t *testing.T) {
	t.Parallel()

	rule := ApprovalRule{
		Conditional: []string{"debug"},
		When: &Predicate{
			Field:  FieldSecurityTier,
			Op:     OpAtLeast,
			Values: []string{string(SecuritySensitive)},
		},
	}

	if got := rule.Resolve("debug", Context{Security: SecurityPublic}); got != DecisionNever {
		t.Errorf("below threshold: got %q, want %q", got, DecisionNever)
	}
	if got := rule.Resolve("debug", Context{Security: SecuritySensitive}); got != DecisionAlways {
		t.Errorf("at threshold: got %q, want %q", got, DecisionAlways)
	}
	if got := rule.Resolve("debug", Context{Security: SecurityCritical}); got != DecisionAlways {
		t.Errorf("above threshold: got %q, want %q", got, DecisionAlways)
	}
}

func TestRegistryResolve_UnknownToolRequiresApproval(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	if got := r.Resolve("ghost", "anything", Context{}); got != DecisionAlways {
		t.Errorf("unknown tool: got %q, want %q", got, DecisionAlways)
	}
}

func TestRegistryResolve_KnownTool(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)

	tests := []struct {
		name      string
		id        string
		operation string
		rc        Context
		want      Decision
	}{
		{"listed never", "codex", "code_review", Context{}, DecisionNever},
		{"listed always", "codex", "refactor", Context{}, DecisionAlways},
		{"conditional below threshold", "codex", "debug", Context{Security: SecurityInternal}, DecisionNever},
		{"conditional at threshold", "codex", "debug", Context{Security: SecuritySensitive}, DecisionAlways},
		{"blanket never", "claude_code", "docs", Context{}, DecisionNever},
		{"blanket always", "aider", "refactor", Context{}, DecisionAlways},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := r.Resolve(tt.id, tt.operation, tt.rc); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// Every (tool, operation, context) triple must resolve to exactly one of
// the two decisions, including unknown ids, unlisted operations, and junk
// context values.
func TestResolve_IsTotal(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)

	ids := []string{"claude_code", "codex", "gemini_cli", "opencode", "aider", "cursor", "ghost", ""}
	operations := []string{"code_review", "debug", "refactor", "explain", "summarize", "unheard_of", ""}
	contexts := []Context{
		{},
		{Criticality: CriticalityBasic, Budget: BudgetFree, Security: SecurityPublic},
		{Criticality: CriticalityPremium, Budget: BudgetStandard, Security: SecurityInternal},
		{Criticality: CriticalityCritical, Budget: BudgetPremium, Security: SecurityCritical},
		{Criticality: "weird", Budget: "weird", Security: "weird"},
	}

	for _, id := range ids {
		for _, op := range operations {
			for _, rc := range contexts {
				got := r.Resolve(id, op, rc)
				if got != DecisionAlways && got != DecisionNever {
					t.Fatalf("resolve(%q, %q, %+v) = %q, want always or never", id, op, rc, got)
				}
			}
		}
	}
}
