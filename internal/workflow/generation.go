package workflow

import (
	"context"
	"fmt"

	"sageops/internal/gate"
	"sageops/internal/language"
	"sageops/internal/logging"
	"sageops/internal/sage"
)

// RequestGeneration is the operator's "generate" action. The gate is
// consulted once, synchronously, at this moment:
//
//   - research found (for the current topic), or acceptRisk set: the run
//     starts immediately (idle -> running).
//   - anything else: idle -> needsResearch, awaiting an explicit choice.
//
// A second request while a run is in flight is a no-op, not a second call.
func (o *Orchestrator) RequestGeneration(ctx context.Context, acceptRisk bool) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		logging.Workflow("generation request ignored in state %s", o.state)
		return nil
	}
	if o.topic == "" {
		o.setTransientMessageLocked("Enter a topic first.")
		o.mu.Unlock()
		return fmt.Errorf("no topic set")
	}
	topic := o.topic

	confirmed := false
	if o.gate != nil {
		g := o.gate.Snapshot()
		confirmed = g.Status == gate.StatusFound && g.Topic == topic
	}

	if !confirmed && !acceptRisk {
		if err := o.transitionLocked(StateNeedsResearch); err != nil {
			o.mu.Unlock()
			return err
		}
		o.message = "No research material found for this topic. Run research first, or proceed at risk."
		o.emitLocked()
		o.mu.Unlock()
		return nil
	}

	if err := o.transitionLocked(StateRunning); err != nil {
		o.mu.Unlock()
		return err
	}
	o.message = ""
	runID := o.runID
	o.emitLocked()
	o.mu.Unlock()

	o.generate(ctx, runID, topic)
	return nil
}

// RunResearchFirst accepts the recommendation to run a research pass
// before generating. The research step is best effort: the workflow
// proceeds whether it succeeds or fails, after re-querying the gate.
func (o *Orchestrator) RunResearchFirst(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateNeedsResearch {
		o.mu.Unlock()
		return nil
	}
	if err := o.transitionLocked(StateRunningResearch); err != nil {
		o.mu.Unlock()
		return err
	}
	o.message = "Running research..."
	runID := o.runID
	topic := o.topic
	o.emitLocked()
	o.mu.Unlock()

	if err := o.client.ResearchRun(ctx, topic); err != nil {
		// Non-fatal: proceed regardless, having attempted best effort.
		logging.Workflow("research run for %q failed (continuing): %v", topic, err)
	}
	if o.gate != nil {
		o.gate.CheckNow(ctx, topic)
	}

	o.mu.Lock()
	if o.runID != runID || o.state != StateRunningResearch {
		o.mu.Unlock()
		return nil
	}
	if err := o.transitionLocked(StateRunning); err != nil {
		o.mu.Unlock()
		return err
	}
	o.message = ""
	o.emitLocked()
	o.mu.Unlock()

	o.generate(ctx, runID, topic)
	return nil
}

// ProceedAnyway starts the run from needsResearch without research.
func (o *Orchestrator) ProceedAnyway(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateNeedsResearch {
		o.mu.Unlock()
		return nil
	}
	if err := o.transitionLocked(StateRunning); err != nil {
		o.mu.Unlock()
		return err
	}
	o.message = ""
	runID := o.runID
	topic := o.topic
	o.emitLocked()
	o.mu.Unlock()

	o.generate(ctx, runID, topic)
	return nil
}

// generate runs the plan call, then the execute call, strictly in
// sequence, and enters review on success. Both calls are issued from the
// caller's goroutine; every applied result checks the captured run ID so a
// late response after abandonment or a topic change is dropped.
func (o *Orchestrator) generate(ctx context.Context, runID, topic string) {
	timer := logging.StartTimer(logging.CategoryWorkflow, "generate "+topic)
	defer timer.Stop()

	plan, err := o.client.Plan(ctx, topic, o.cfg.Market, o.cfg.Price)
	if err != nil {
		o.failRun(runID, fmt.Sprintf("Plan generation failed: %v", err))
		return
	}

	o.mu.Lock()
	if o.runID != runID || o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.plan = plan
	o.mu.Unlock()

	result, err := o.client.Execute(ctx, sage.ExecuteRequest{
		Topic:    topic,
		Plan:     plan,
		Language: language.Resolve(o.cfg.Language, topic),
		Sections: o.cfg.Sections,
	})
	if err != nil {
		o.failRun(runID, fmt.Sprintf("Execution failed: %v", err))
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID || o.state != StateRunning {
		return
	}
	if err := o.transitionLocked(StateReview); err != nil {
		return
	}
	// The plan is discarded once execution succeeds.
	o.plan = ""
	o.doc = &Document{
		Sections:       result.Sections,
		SalesPage:      result.SalesPage,
		QAStatus:       result.QAStatus,
		ResearchSource: result.ResearchSource,
	}
	logging.Workflow("entered review: %d sections, salesPage=%v, qa=%s",
		len(result.Sections), result.SalesPage != "", result.QAStatus)
	o.emitLocked()
}

// failRun applies a plan/execute failure unless the run was superseded.
func (o *Orchestrator) failRun(runID, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID || o.state != StateRunning {
		return
	}
	logging.WorkflowError("%s", msg)
	o.enterErrorLocked(msg)
}
