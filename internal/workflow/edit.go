package workflow

import "fmt"

// UpdateSectionContent applies a manual operator edit to a section during
// review. Edits are rejected while a rewrite targets the same unit.
func (o *Orchestrator) UpdateSectionContent(index int, content string) error {
	return o.updateUnit(SectionRef(index), content)
}

// UpdateSalesPage applies a manual operator edit to the sales page.
func (o *Orchestrator) UpdateSalesPage(content string) error {
	return o.updateUnit(SalesPageRef, content)
}

func (o *Orchestrator) updateUnit(ref UnitRef, content string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateReview || o.doc == nil {
		return fmt.Errorf("no document under review")
	}
	if o.globalBusy || o.busyUnits[ref] {
		return fmt.Errorf("%s has a rewrite in flight", ref)
	}
	if err := o.setUnitContentLocked(ref, content); err != nil {
		return err
	}
	o.emitLocked()
	return nil
}
