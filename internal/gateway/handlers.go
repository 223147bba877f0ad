package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wombat2006/techdev-sub003/internal/consult"
	"github.com/wombat2006/techdev-sub003/internal/engine"
	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
	"github.com/wombat2006/techdev-sub003/internal/tool"
)

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 500
)

// healthResponse is the JSON body for the probe endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// handleHealthz is the liveness probe: the process is up and serving.
func (g *Gateway) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// handleReadyz is the readiness probe. It pings the invocation store and
// reports degraded with a 503 when the ping fails.
func (g *Gateway) handleReadyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.History != nil {
			if err := g.deps.History.Ping(r.Context()); err != nil {
				g.deps.Logger.Warn("store ping failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// consultRequest is the JSON body for POST /v1/consult. All fields except
// prompt are optional; omitted tiers fall back to the policy engine's
// most restrictive interpretation.
type consultRequest struct {
	Prompt          string `json:"prompt"`
	Engine          string `json:"engine"`
	TaskCriticality string `json:"task_criticality"`
	BudgetTier      string `json:"budget_tier"`
	SecurityTier    string `json:"security_tier"`
	CallEstimate    int    `json:"call_estimate"`
}

func (c consultRequest) context() tool.Context {
	return tool.Context{
		Criticality:  tool.Criticality(c.TaskCriticality),
		Budget:       tool.BudgetTier(c.BudgetTier),
		Security:     tool.SecurityTier(c.SecurityTier),
		CallEstimate: c.CallEstimate,
	}
}

// consultResponse is the JSON body for a completed consultation.
type consultResponse struct {
	Engine     string        `json:"engine"`
	Tool       string        `json:"tool"`
	Text       string        `json:"text"`
	Usage      stream.Usage  `json:"usage"`
	DurationMS int64         `json:"duration_ms"`
	Selection  selectionJSON `json:"selection"`
}

// handleConsult runs one consultation and blocks until the engine
// finishes; slow engines are covered by the server write timeout.
func (g *Gateway) handleConsult() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Consulter == nil {
			http.Error(w, "consult unavailable", http.StatusServiceUnavailable)
			return
		}

		var body consultRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Prompt == "" {
			http.Error(w, "missing prompt", http.StatusBadRequest)
			return
		}

		rc := body.context()
		resp, err := g.deps.Consulter.Consult(r.Context(), consult.Request{
			Prompt:  body.Prompt,
			Engine:  body.Engine,
			Context: rc,
		})
		if err != nil {
			writeJSON(w, statusForConsultError(err), map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, consultResponse{
			Engine:     resp.Engine,
			Tool:       resp.Tool,
			Text:       resp.Text,
			Usage:      resp.Usage,
			DurationMS: resp.Duration.Milliseconds(),
			Selection:  selectionToJSON(resp.Selection, rc),
		})
	}
}

// statusForConsultError maps the consultation error taxonomy to HTTP
// status codes: caller mistakes 400, policy refusals 403, nothing eligible
// 503, engine timeouts 504, engine failures 502.
func statusForConsultError(err error) int {
	var procErr *engine.ProcessError
	switch {
	case errors.Is(err, consult.ErrUnknownEngine):
		return http.StatusBadRequest
	case errors.Is(err, consult.ErrEngineNotEligible):
		return http.StatusForbidden
	case errors.Is(err, consult.ErrNoToolAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrInitialTimeout), errors.Is(err, engine.ErrInactivityTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrSpawn):
		return http.StatusBadGateway
	case errors.As(err, &procErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// operationJSON is one operation of a selected tool with its resolved
// approval decision for the request context.
type operationJSON struct {
	Name     string `json:"name"`
	Approval string `json:"approval"`
}

// selectedToolJSON is a serializable snapshot of one accepted tool.
type selectedToolJSON struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	Engine       string          `json:"engine,omitempty"`
	CostTier     string          `json:"cost_tier"`
	SecurityTier string          `json:"security_tier"`
	Operations   []operationJSON `json:"operations"`
}

// selectionJSON is a serializable selection outcome.
type selectionJSON struct {
	Tools         []selectedToolJSON `json:"tools"`
	EstimatedCost float64            `json:"estimated_cost"`
	CostWarning   string             `json:"cost_warning,omitempty"`
}

func selectionToJSON(sel tool.Selection, rc tool.Context) selectionJSON {
	out := selectionJSON{
		Tools:         make([]selectedToolJSON, 0, len(sel.Tools)),
		EstimatedCost: sel.EstimatedCost,
		CostWarning:   sel.CostWarning,
	}
	for _, st := range sel.Tools {
		tj := selectedToolJSON{
			ID:           st.Descriptor.ID,
			Label:        st.Descriptor.Label,
			Engine:       st.Descriptor.Engine,
			CostTier:     string(st.Descriptor.Cost),
			SecurityTier: string(st.Descriptor.Security),
			Operations:   make([]operationJSON, 0, len(st.Operations)),
		}
		for _, op := range st.Operations {
			tj.Operations = append(tj.Operations, operationJSON{
				Name:     op,
				Approval: string(st.Approval.Resolve(op, rc)),
			})
		}
		out.Tools = append(out.Tools, tj)
	}
	return out
}

// handleToolPreview answers GET /v1/tools: the selection the policy engine
// would make for the context supplied in the query string, without running
// anything.
func (g *Gateway) handleToolPreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Tools == nil {
			http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		rc := tool.Context{
			Criticality: tool.Criticality(q.Get("task_criticality")),
			Budget:      tool.BudgetTier(q.Get("budget_tier")),
			Security:    tool.SecurityTier(q.Get("security_tier")),
		}
		if raw := q.Get("call_estimate"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid call_estimate", http.StatusBadRequest)
				return
			}
			rc.CallEstimate = n
		}

		sel := g.deps.Tools.Select(rc)
		writeJSON(w, http.StatusOK, selectionToJSON(sel, rc))
	}
}

// predicateJSON mirrors tool.Predicate.
type predicateJSON struct {
	Field  string   `json:"field"`
	Op     string   `json:"op"`
	Values []string `json:"values"`
}

// approvalJSON mirrors tool.ApprovalRule.
type approvalJSON struct {
	Mode        string         `json:"mode,omitempty"`
	Never       []string       `json:"never,omitempty"`
	Always      []string       `json:"always,omitempty"`
	Conditional []string       `json:"conditional,omitempty"`
	When        *predicateJSON `json:"when,omitempty"`
}

func (a approvalJSON) toRule() tool.ApprovalRule {
	rule := tool.ApprovalRule{
		Mode:        tool.Decision(a.Mode),
		Never:       a.Never,
		Always:      a.Always,
		Conditional: a.Conditional,
	}
	if a.When != nil {
		rule.When = &tool.Predicate{
			Field:  a.When.Field,
			Op:     a.When.Op,
			Values: a.When.Values,
		}
	}
	return rule
}

func approvalToJSON(rule tool.ApprovalRule) approvalJSON {
	out := approvalJSON{
		Mode:        string(rule.Mode),
		Never:       rule.Never,
		Always:      rule.Always,
		Conditional: rule.Conditional,
	}
	if rule.When != nil {
		out.When = &predicateJSON{
			Field:  rule.When.Field,
			Op:     rule.When.Op,
			Values: rule.When.Values,
		}
	}
	return out
}

// descriptorJSON is a serializable catalog descriptor.
type descriptorJSON struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Engine       string       `json:"engine,omitempty"`
	Operations   []string     `json:"operations"`
	CostTier     string       `json:"cost_tier"`
	SecurityTier string       `json:"security_tier"`
	Approval     approvalJSON `json:"approval"`
	Ready        bool         `json:"ready"`
}

func descriptorToJSON(d tool.Descriptor) descriptorJSON {
	return descriptorJSON{
		ID:           d.ID,
		Label:        d.Label,
		Engine:       d.Engine,
		Operations:   d.Operations,
		CostTier:     string(d.Cost),
		SecurityTier: string(d.Security),
		Approval:     approvalToJSON(d.Approval),
		Ready:        d.Ready == nil || d.Ready(),
	}
}

// toolPatchJSON is the body for PATCH /v1/tools/{id}. Nil fields keep the
// stored value. Readiness probes are config-owned and not patchable over
// HTTP.
type toolPatchJSON struct {
	Label        *string       `json:"label"`
	Operations   *[]string     `json:"operations"`
	CostTier     *string       `json:"cost_tier"`
	SecurityTier *string       `json:"security_tier"`
	Approval     *approvalJSON `json:"approval"`
	Engine       *string       `json:"engine"`
}

// handlePatchTool applies a partial descriptor update and returns the
// stored result. Unknown ids answer 404; a patch that fails descriptor
// validation answers 400 and leaves the catalog unchanged.
func (g *Gateway) handlePatchTool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Tools == nil {
			http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing tool id", http.StatusBadRequest)
			return
		}

		var body toolPatchJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		p := tool.Patch{
			Label:      body.Label,
			Operations: body.Operations,
			Engine:     body.Engine,
		}
		if body.CostTier != nil {
			c := tool.CostTier(*body.CostTier)
			p.Cost = &c
		}
		if body.SecurityTier != nil {
			s := tool.SecurityTier(*body.SecurityTier)
			p.Security = &s
		}
		if body.Approval != nil {
			rule := body.Approval.toRule()
			p.Approval = &rule
		}

		updated, err := g.deps.Tools.Update(id, p)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, tool.ErrUnknownTool) {
				code = http.StatusNotFound
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
			return
		}

		g.deps.Logger.Info("tool descriptor patched", "tool", id)
		writeJSON(w, http.StatusOK, descriptorToJSON(updated))
	}
}

// invocationJSON is a serializable invocation log row.
type invocationJSON struct {
	ID           int64  `json:"id"`
	Engine       string `json:"engine"`
	PromptSHA256 string `json:"prompt_sha256"`
	TextLen      int    `json:"text_len"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Exact        bool   `json:"exact"`
	DurationMS   int64  `json:"duration_ms"`
	Outcome      string `json:"outcome"`
	ExitCode     int    `json:"exit_code"`
	CreatedAt    string `json:"created_at"`
}

// handleHistory lists recent invocation records, newest last.
func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := historyDefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > historyMaxLimit {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		out := []invocationJSON{}
		if g.deps.History != nil {
			records, err := g.deps.History.Recent(r.Context(), limit)
			if err != nil {
				g.deps.Logger.Error("history read failed", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history read failed"})
				return
			}
			for _, rec := range records {
				out = append(out, invocationJSON{
					ID:           rec.ID,
					Engine:       rec.Engine,
					PromptSHA256: rec.PromptSHA256,
					TextLen:      rec.TextLen,
					InputTokens:  rec.InputTokens,
					OutputTokens: rec.OutputTokens,
					TotalTokens:  rec.TotalTokens,
					Exact:        rec.Exact,
					DurationMS:   rec.Duration.Milliseconds(),
					Outcome:      string(rec.Outcome),
					ExitCode:     rec.ExitCode,
					CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
