// Package tooltest provides canned catalogs and registry builders for
// exercising the tool policy engine in tests.
package tooltest

import (
	"testing"

	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// Catalog returns a representative descriptor set: one tool per engine the
// priority tables know about, covering every cost and security tier and
// each approval rule shape.
func Catalog() []tool.Descriptor {
	return []tool.Descriptor{
		{
			ID:         "claude_code",
			Label:      "Claude Code",
			Operations: []string{"code_review", "debug", "refactor", "test_gen", "docs"},
			Cost:       tool.CostHigh,
			Security:   tool.SecurityInternal,
			Approval:   tool.ApprovalRule{Mode: tool.DecisionNever},
			Engine:     "claude",
		},
		{
			ID:         "codex",
			Label:      "Codex CLI",
			Operations: []string{"code_review", "debug", "refactor", "explain"},
			Cost:       tool.CostMedium,
			Security:   tool.SecurityPublic,
			Approval: tool.ApprovalRule{
				Never:       []string{"code_review", "explain"},
				Always:      []string{"refactor"},
				Conditional: []string{"debug"},
				When: &tool.Predicate{
					Field:  tool.FieldSecurityTier,
					Op:     tool.OpAtLeast,
					Values: []string{string(tool.SecuritySensitive)},
				},
			},
			Engine: "codex",
		},
		{
			ID:         "gemini_cli",
			Label:      "Gemini CLI",
			Operations: []string{"explain", "summarize"},
			Cost:       tool.CostLow,
			Security:   tool.SecurityPublic,
			Approval:   tool.ApprovalRule{Mode: tool.DecisionNever},
			Engine:     "gemini",
		},
		{
			ID:         "opencode",
			Label:      "OpenCode",
			Operations: []string{"debug", "refactor"},
			Cost:       tool.CostFree,
			Security:   tool.SecuritySensitive,
			Approval:   tool.ApprovalRule{Mode: tool.DecisionAlways},
		},
		{
			ID:         "aider",
			Label:      "Aider",
			Operations: []string{"refactor"},
			Cost:       tool.CostLow,
			Security:   tool.SecurityCritical,
			Approval:   tool.ApprovalRule{Mode: tool.DecisionAlways},
		},
	}
}

// NewRegistry builds a registry seeded with Catalog. It fails the test on
// any registration error.
func NewRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	r := tool.NewRegistry()
	for _, d := range Catalog() {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}
	return r
}
