package tool

import (
	"math"
	"strings"
	"testing"
)

func selectedIDs(sel Selection) []string {
	ids := make([]string, 0, len(sel.Tools))
	for _, s := range sel.Tools {
		ids = append(ids, s.Descriptor.ID)
	}
	return ids
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSelect_StandardBudgetCapsCriticalTask(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	sel := r.Select(Context{
		Criticality: CriticalityCritical,
		Budget:      BudgetStandard,
		Security:    SecurityInternal,
	})

	if len(sel.Tools) > 3 {
		t.Fatalf("standard budget must cap at 3 tools, got %d", len(sel.Tools))
	}
	want := []string{"claude_code", "codex", "gemini_cli"}
	if got := selectedIDs(sel); !equalIDs(got, want) {
		t.Errorf("selection order: got %v, want %v", got, want)
	}
	clearance := SecurityInternal.Rank()
	for _, s := range sel.Tools {
		if s.Descriptor.Security.Rank() > clearance {
			t.Errorf("tool %s exceeds the requester's clearance (%s)", s.Descriptor.ID, s.Descriptor.Security)
		}
	}
}

func TestSelect_SecurityGateRejectsAboveClearance(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	sel := r.Select(Context{
		Criticality: CriticalityBasic,
		Budget:      BudgetPremium,
		Security:    SecurityPublic,
	})

	want := []string{"codex", "gemini_cli"}
	if got := selectedIDs(sel); !equalIDs(got, want) {
		t.Errorf("selection: got %v, want %v", got, want)
	}
}

func TestSelect_ReadinessGate(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	ctx := Context{
		Criticality: CriticalityPremium,
		Budget:      BudgetPremium,
		Security:    SecurityInternal,
	}

	want := []string{"claude_code", "codex", "gemini_cli"}
	if got := selectedIDs(r.Select(ctx)); !equalIDs(got, want) {
		t.Fatalf("with cursor unready: got %v, want %v", got, want)
	}

	if _, err := r.Update("cursor", Patch{Ready: func() bool { return true }}); err != nil {
		t.Fatalf("update cursor: %v", err)
	}

	want = []string{"claude_code", "codex", "gemini_cli", "cursor"}
	if got := selectedIDs(r.Select(ctx)); !equalIDs(got, want) {
		t.Errorf("with cursor ready: got %v, want %v", got, want)
	}
}

func TestSelect_BasicTruncatesOperations(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	sel := r.Select(Context{
		Criticality: CriticalityBasic,
		Budget:      BudgetPremium,
		Security:    SecurityCritical,
	})

	byID := make(map[string]Selected, len(sel.Tools))
	for _, s := range sel.Tools {
		byID[s.Descriptor.ID] = s
	}

	claude, ok := byID["claude_code"]
	if !ok {
		t.Fatal("claude_code not selected")
	}
	wantOps := []string{"code_review", "debug", "refactor"}
	if !equalIDs(claude.Operations, wantOps) {
		t.Errorf("claude_code operations: got %v, want %v", claude.Operations, wantOps)
	}

	gemini, ok := byID["gemini_cli"]
	if !ok {
		t.Fatal("gemini_cli not selected")
	}
	if len(gemini.Operations) != 2 {
		t.Errorf("short operation lists must stay whole: got %v", gemini.Operations)
	}
}

func TestSelect_CriticalTightensBlanketNever(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	ctx := Context{
		Criticality: CriticalityCritical,
		Budget:      BudgetPremium,
		Security:    SecurityCritical,
	}
	sel := r.Select(ctx)

	byID := make(map[string]Selected, len(sel.Tools))
	for _, s := range sel.Tools {
		byID[s.Descriptor.ID] = s
	}

	claude, ok := byID["claude_code"]
	if !ok {
		t.Fatal("claude_code not selected")
	}
	checks := []struct {
		operation string
		want      Decision
	}{
		{"code_review", DecisionNever},
		{"debug", DecisionNever},
		{"refactor", DecisionAlways},
		{"test_gen", DecisionAlways},
		{"docs", DecisionAlways},
		{"unheard_of", DecisionAlways},
	}
	for _, c := range checks {
		if got := claude.Approval.Resolve(c.operation, ctx); got != c.want {
			t.Errorf("tightened rule, %s: got %q, want %q", c.operation, got, c.want)
		}
	}

	// Non-blanket rules pass through untouched.
	codex := byID["codex"]
	if len(codex.Approval.Always) != 1 || codex.Approval.Always[0] != "refactor" {
		t.Errorf("codex rule mutated: %+v", codex.Approval)
	}

	// Blanket Always stays blanket.
	opencode := byID["opencode"]
	if opencode.Approval.Mode != DecisionAlways {
		t.Errorf("opencode mode: got %q, want %q", opencode.Approval.Mode, DecisionAlways)
	}

	// The mutation must not leak back into the registry.
	stored, err := r.Get("claude_code")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Approval.Mode != DecisionNever {
		t.Errorf("registry rule mutated by selection: %+v", stored.Approval)
	}
}

func TestSelect_TieBreakFollowsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "codex"} {
		err := r.Register(Descriptor{
			ID:         id,
			Operations: []string{"explain"},
			Cost:       CostFree,
			Security:   SecurityPublic,
			Approval:   ApprovalRule{Mode: DecisionAlways},
		})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	sel := r.Select(Context{
		Criticality: CriticalityBasic,
		Budget:      BudgetPremium,
		Security:    SecurityPublic,
	})

	// codex ranks in the basic table; zeta and alpha do not, so they keep
	// registration order, not alphabetical order.
	want := []string{"codex", "zeta", "alpha"}
	if got := selectedIDs(sel); !equalIDs(got, want) {
		t.Errorf("selection order: got %v, want %v", got, want)
	}
}

func TestSelect_UnknownCriticalityUsesBasicTable(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)
	sel := r.Select(Context{
		Criticality: "experimental",
		Budget:      BudgetPremium,
		Security:    SecurityCritical,
	})

	want := []string{"codex", "gemini_cli", "claude_code", "opencode", "aider"}
	if got := selectedIDs(sel); !equalIDs(got, want) {
		t.Errorf("selection order: got %v, want %v", got, want)
	}

	// Only the table falls back; the basic operation truncation does not
	// apply to an unrecognized criticality.
	for _, s := range sel.Tools {
		if s.Descriptor.ID == "claude_code" && len(s.Operations) != 5 {
			t.Errorf("operations truncated for unknown criticality: got %v", s.Operations)
		}
	}
}

func TestSelect_CostAggregation(t *testing.T) {
	t.Parallel()

	r := seedRegistry(t)

	sel := r.Select(Context{
		Criticality:  CriticalityPremium,
		Budget:       BudgetPremium,
		Security:     SecurityCritical,
		CallEstimate: 20,
	})
	// claude_code high, codex medium, gemini_cli and aider low, opencode free.
	want := 20 * (0.01 + 0.001 + 0.0001 + 0.0001)
	if math.Abs(sel.EstimatedCost-want) > 1e-9 {
		t.Errorf("estimated cost: got %v, want %v", sel.EstimatedCost, want)
	}
	if sel.CostWarning == "" {
		t.Error("expected a cost warning above the threshold")
	}
	if !strings.Contains(sel.CostWarning, "0.10") {
		t.Errorf("warning should name the threshold: %q", sel.CostWarning)
	}

	cheap := r.Select(Context{
		Criticality: CriticalityBasic,
		Budget:      BudgetFree,
		Security:    SecurityPublic,
	})
	if math.Abs(cheap.EstimatedCost-0.001) > 1e-9 {
		t.Errorf("free-budget cost: got %v, want 0.001", cheap.EstimatedCost)
	}
	if cheap.CostWarning != "" {
		t.Errorf("unexpected warning below the threshold: %q", cheap.CostWarning)
	}
}

func TestSelect_EmptyRegistry(t *testing.T) {
	t.Parallel()

	sel := NewRegistry().Select(Context{
		Criticality: CriticalityPremium,
		Budget:      BudgetPremium,
		Security:    SecurityCritical,
	})

	if len(sel.Tools) != 0 || sel.EstimatedCost != 0 || sel.CostWarning != "" {
		t.Errorf("empty registry selection not empty: %+v", sel)
	}
}
