package tool

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry holds the process-wide tool catalog. It is instance-based (not
// global) so the orchestration context owns its lifecycle explicitly;
// construct it once at startup and share it read-mostly.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Descriptor),
	}
}

// Register adds a descriptor to the catalog. Registration order is
// significant: it breaks priority ties during selection.
// It returns ErrEmptyToolID, ErrDuplicateTool, or a validation error.
func (r *Registry) Register(d Descriptor) error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return ErrEmptyToolID
	}
	if err := d.validate(); err != nil {
		return fmt.Errorf("tool %s: %w", d.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.ID)
	}

	r.tools[d.ID] = cloneDescriptor(d)
	r.order = append(r.order, d.ID)
	return nil
}

// Get returns a detached copy of the descriptor with the given id, or
// ErrUnknownTool.
func (r *Registry) Get(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	return cloneDescriptor(d), nil
}

// List returns detached copies of all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneDescriptor(r.tools[id]))
	}
	return out
}

// Patch carries a partial descriptor update. Nil fields keep the stored
// value; non-nil fields replace it whole.
type Patch struct {
	Label      *string
	Operations *[]string
	Cost       *CostTier
	Security   *SecurityTier
	Approval   *ApprovalRule
	Engine     *string
	Ready      func() bool
}

// Update shallow-merges the patch over the stored descriptor and replaces
// the stored value atomically: readers observe either the old or the new
// descriptor, never a mix. Concurrent updates to the same id are
// last-write-wins. A failed update leaves the registry unchanged.
func (r *Registry) Update(id string, p Patch) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tools[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}

	next := cur
	if p.Label != nil {
		next.Label = *p.Label
	}
	if p.Operations != nil {
		next.Operations = *p.Operations
	}
	if p.Cost != nil {
		next.Cost = *p.Cost
	}
	if p.Security != nil {
		next.Security = *p.Security
	}
	if p.Approval != nil {
		next.Approval = *p.Approval
	}
	if p.Engine != nil {
		next.Engine = *p.Engine
	}
	if p.Ready != nil {
		next.Ready = p.Ready
	}

	if err := next.validate(); err != nil {
		return Descriptor{}, fmt.Errorf("tool %s: %w", id, err)
	}

	r.tools[id] = cloneDescriptor(next)
	return cloneDescriptor(next), nil
}

// cloneDescriptor detaches the slices a descriptor carries so registry
// entries never alias caller-owned storage.
func cloneDescriptor(d Descriptor) Descriptor {
	d.Operations = slices.Clone(d.Operations)
	d.Approval.Never = slices.Clone(d.Approval.Never)
	d.Approval.Always = slices.Clone(d.Approval.Always)
	d.Approval.Conditional = slices.Clone(d.Approval.Conditional)
	if d.Approval.When != nil {
		w := *d.Approval.When
		w.Values = slices.Clone(w.Values)
		d.Approval.When = &w
	}
	return d
}
