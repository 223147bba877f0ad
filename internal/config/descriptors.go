package config

import (
	"os"
	"slices"

	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// Descriptors converts the tool seeds into catalog descriptors, preserving
// declaration order so registration order (and selection tie-breaking)
// matches the file.
func (c *Config) Descriptors() []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(c.Tools))
	for _, t := range c.Tools {
		out = append(out, tool.Descriptor{
			ID:         t.ID,
			Label:      t.Label,
			Operations: slices.Clone(t.Operations),
			Cost:       tool.CostTier(t.Cost),
			Security:   tool.SecurityTier(t.Security),
			Approval:   t.Approval.rule(),
			Engine:     t.Engine,
			Ready:      envReady(t.RequiresEnv),
		})
	}
	return out
}

// rule converts the YAML approval shape into the domain rule. An entirely
// empty shape yields a rule that gates every operation.
func (a ApprovalConfig) rule() tool.ApprovalRule {
	r := tool.ApprovalRule{
		Mode:        tool.Decision(a.Mode),
		Never:       slices.Clone(a.Never),
		Always:      slices.Clone(a.Always),
		Conditional: slices.Clone(a.Conditional),
	}
	if a.When != nil {
		r.When = &tool.Predicate{
			Field:  a.When.Field,
			Op:     a.When.Op,
			Values: slices.Clone(a.When.Values),
		}
	}
	return r
}

// envReady builds a readiness probe over required environment variables:
// the tool is ready when every listed variable is non-empty. Tools with no
// requirements get a nil probe, meaning always ready.
func envReady(vars []string) func() bool {
	if len(vars) == 0 {
		return nil
	}
	vars = slices.Clone(vars)
	return func() bool {
		for _, v := range vars {
			if os.Getenv(v) == "" {
				return false
			}
		}
		return true
	}
}
