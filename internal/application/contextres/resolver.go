// Package contextres resolves a conversation target into the context an
// engine needs: the target record, its ancestor chain up the hierarchy,
// and the nearest linked workflow.
package contextres

import (
	"fmt"

	"github.com/sotakimura/conductor/internal/domain/model/record"
)

// maxDepth bounds the parent walk so a cyclic parent link cannot spin
const maxDepth = 8

// Context is the resolved material for one conversation target
type Context struct {
	TargetRef string
	Target    *record.Record   // nil for the general target
	Ancestors []*record.Record // nearest first: phase, then track
	Workflow  *record.Workflow // nearest linked workflow, nil if none
}

// IsGeneral reports whether the context is unbound to any record
func (c *Context) IsGeneral() bool { return c.Target == nil }

// Resolver resolves targets against the record store
type Resolver struct {
	store record.Store
}

// NewResolver creates a resolver backed by the given store
func NewResolver(store record.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve builds the context for a target reference.
// "general" resolves to an empty context. A reference to a missing record
// is an error; conversations never start against phantom targets.
func (r *Resolver) Resolve(target string) (*Context, error) {
	if target == "" || target == record.GeneralTarget {
		return &Context{TargetRef: record.GeneralTarget}, nil
	}

	ref, err := record.ParseRef(target)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.Get(ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}

	ctx := &Context{TargetRef: ref.ID, Target: rec}

	// Walk the parent chain, collecting ancestors nearest first
	current := rec
	for depth := 0; current.Parent != "" && depth < maxDepth; depth++ {
		parentRef, err := record.ParseRef(current.Parent)
		if err != nil {
			return nil, fmt.Errorf("record %s has invalid parent reference %q: %w", current.ID, current.Parent, err)
		}
		parent, err := r.store.Get(parentRef.Kind, parentRef.ID)
		if err != nil {
			return nil, fmt.Errorf("record %s references parent %s: %w", current.ID, parentRef.ID, err)
		}
		ctx.Ancestors = append(ctx.Ancestors, parent)
		current = parent
	}

	// Nearest workflow wins: target first, then up the chain
	wfID := rec.Workflow
	for _, ancestor := range ctx.Ancestors {
		if wfID != "" {
			break
		}
		wfID = ancestor.Workflow
	}
	if wfID != "" {
		wf, err := r.store.GetWorkflow(wfID)
		if err != nil {
			return nil, fmt.Errorf("target %s links workflow %s: %w", ref.ID, wfID, err)
		}
		ctx.Workflow = wf
	}

	return ctx, nil
}
