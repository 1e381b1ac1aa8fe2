package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sageops/internal/language"
	"sageops/internal/logging"
)

// RewriteSection applies an instruction-driven rewrite to one section.
// The pending instruction is cleared only on success; on failure it is
// retained so the operator can retry without retyping.
func (o *Orchestrator) RewriteSection(ctx context.Context, index int, instruction string) error {
	return o.rewriteUnit(ctx, SectionRef(index), instruction)
}

// RewriteSalesPage applies an instruction-driven rewrite to the sales page.
func (o *Orchestrator) RewriteSalesPage(ctx context.Context, instruction string) error {
	return o.rewriteUnit(ctx, SalesPageRef, instruction)
}

func (o *Orchestrator) rewriteUnit(ctx context.Context, ref UnitRef, instruction string) error {
	o.mu.Lock()
	if o.state != StateReview || o.doc == nil {
		o.mu.Unlock()
		return nil
	}
	if instruction == "" {
		o.mu.Unlock()
		return fmt.Errorf("empty rewrite instruction")
	}
	content, err := o.unitContentLocked(ref)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	// A unit is locked for the duration of any rewrite targeting it,
	// including a global fan-out. A conflicting request is a no-op.
	if o.globalBusy || o.busyUnits[ref] {
		o.mu.Unlock()
		logging.Rewrite("scoped rewrite of %s ignored: unit busy", ref)
		return nil
	}
	o.busyUnits[ref] = true
	o.pendingInstr[ref] = instruction
	delete(o.unitErrors, ref)
	runID := o.runID
	topic := o.topic
	o.emitLocked()
	o.mu.Unlock()

	lang := language.Resolve(o.cfg.Language, topic)
	logging.Rewrite("scoped rewrite of %s (lang=%s)", ref, lang)
	rewritten, rerr := o.client.Rewrite(ctx, content, instruction, lang)
	o.applyUnitResult(runID, ref, rewritten, rerr)
	return nil
}

// RewriteAll fans one instruction out as independent scoped calls, one per
// section plus one for the sales page if present, issued concurrently. The
// document is updated unit-by-unit as each call resolves; a slow or failing
// unit never blocks or rolls back its siblings. A second global rewrite
// while one is outstanding is a no-op.
func (o *Orchestrator) RewriteAll(ctx context.Context, instruction string) error {
	o.mu.Lock()
	if o.state != StateReview || o.doc == nil {
		o.mu.Unlock()
		return nil
	}
	if instruction == "" {
		o.mu.Unlock()
		return fmt.Errorf("empty rewrite instruction")
	}
	if o.globalBusy {
		o.mu.Unlock()
		logging.Rewrite("global rewrite ignored: one already outstanding")
		return nil
	}
	if len(o.busyUnits) > 0 {
		o.setTransientMessageLocked("A section rewrite is still running - wait for it before rewriting everything.")
		o.mu.Unlock()
		return nil
	}

	type unit struct {
		ref     UnitRef
		content string
	}
	units := make([]unit, 0, len(o.doc.Sections)+1)
	for i, s := range o.doc.Sections {
		units = append(units, unit{ref: SectionRef(i), content: s.Content})
	}
	if o.doc.SalesPage != "" {
		units = append(units, unit{ref: SalesPageRef, content: o.doc.SalesPage})
	}

	o.globalBusy = true
	for _, u := range units {
		o.busyUnits[u.ref] = true
		delete(o.unitErrors, u.ref)
	}
	runID := o.runID
	topic := o.topic
	o.emitLocked()
	o.mu.Unlock()

	lang := language.Resolve(o.cfg.Language, topic)
	logging.Rewrite("global rewrite fan-out: %d units (lang=%s)", len(units), lang)

	var g errgroup.Group
	for _, u := range units {
		u := u
		g.Go(func() error {
			rewritten, err := o.client.Rewrite(ctx, u.content, instruction, lang)
			// Each unit's result lands independently; a failure never
			// cancels or rolls back siblings.
			o.applyUnitResult(runID, u.ref, rewritten, err)
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID {
		return nil
	}
	o.globalBusy = false
	o.emitLocked()
	return nil
}

// applyUnitResult commits one rewrite outcome to its slot, unless the run
// was superseded. Updates to distinct units commute; nothing here depends
// on sibling results.
func (o *Orchestrator) applyUnitResult(runID string, ref UnitRef, rewritten string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID {
		return
	}
	delete(o.busyUnits, ref)
	if o.state != StateReview || o.doc == nil {
		return
	}

	if err != nil {
		// Unit content is left unchanged; the pending instruction is
		// retained for retry.
		logging.RewriteError("rewrite of %s failed: %v", ref, err)
		o.unitErrors[ref] = "Rewrite failed - content unchanged."
		o.emitLocked()
		return
	}

	if serr := o.setUnitContentLocked(ref, rewritten); serr != nil {
		logging.RewriteError("cannot apply rewrite of %s: %v", ref, serr)
		return
	}
	// Any successful rewrite of the unit supersedes an instruction
	// retained from an earlier failure.
	delete(o.pendingInstr, ref)
	logging.Rewrite("rewrite of %s applied (%d chars)", ref, len(rewritten))
	o.emitLocked()
}

// unitContentLocked reads a unit's current content. Callers must hold o.mu.
func (o *Orchestrator) unitContentLocked(ref UnitRef) (string, error) {
	if ref.SalesPage {
		if o.doc.SalesPage == "" {
			return "", fmt.Errorf("document has no sales page")
		}
		return o.doc.SalesPage, nil
	}
	if ref.Section < 0 || ref.Section >= len(o.doc.Sections) {
		return "", fmt.Errorf("section index %d out of range", ref.Section)
	}
	return o.doc.Sections[ref.Section].Content, nil
}

// setUnitContentLocked replaces a unit's content. Callers must hold o.mu.
func (o *Orchestrator) setUnitContentLocked(ref UnitRef, content string) error {
	if ref.SalesPage {
		o.doc.SalesPage = content
		return nil
	}
	if ref.Section < 0 || ref.Section >= len(o.doc.Sections) {
		return fmt.Errorf("section index %d out of range", ref.Section)
	}
	o.doc.Sections[ref.Section].Content = content
	return nil
}
