package workflow

import (
	"context"
	"fmt"

	"sageops/internal/logging"
	"sageops/internal/sage"
)

// Finalize persists the reviewed document. On success the workflow is
// finalized and the saved location is reported; on failure the state
// returns to review with the document unchanged and a message that clears
// after the display window. Finalize refuses to overlap outstanding
// rewrites.
func (o *Orchestrator) Finalize(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateReview {
		o.mu.Unlock()
		return nil
	}
	if o.globalBusy || len(o.busyUnits) > 0 {
		o.setTransientMessageLocked("Rewrites still in progress - wait for them to finish before saving.")
		o.mu.Unlock()
		return nil
	}
	if err := o.transitionLocked(StateFinalizing); err != nil {
		o.mu.Unlock()
		return err
	}
	runID := o.runID
	topic := o.topic
	req := sage.FinalizeRequest{
		Topic:     topic,
		Sections:  o.doc.Clone().Sections,
		SalesPage: o.doc.SalesPage,
	}
	o.message = ""
	o.emitLocked()
	o.mu.Unlock()

	location, err := o.client.Finalize(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID || o.state != StateFinalizing {
		return nil
	}
	if err != nil {
		logging.WorkflowError("finalize for %q failed: %v", topic, err)
		if terr := o.transitionLocked(StateReview); terr != nil {
			return terr
		}
		o.setTransientMessageLocked(fmt.Sprintf("Save failed: %v", err))
		return nil
	}

	if terr := o.transitionLocked(StateFinalized); terr != nil {
		return terr
	}
	o.savedLocation = location
	// The document's review lifecycle ends here.
	o.doc = nil
	o.pendingInstr = make(map[UnitRef]string)
	o.unitErrors = make(map[UnitRef]string)
	logging.Workflow("finalized %q -> %s", topic, location)
	o.emitLocked()
	return nil
}

// LoadSaved fetches a previously finalized product from the backend
// content store. It does not touch workflow state; the one-shot CLI and
// the round-trip checks use it directly.
func (o *Orchestrator) LoadSaved(ctx context.Context, location string) (*sage.SavedProduct, error) {
	return o.client.Load(ctx, location)
}
